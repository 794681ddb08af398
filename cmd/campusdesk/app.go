package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jllopis/campusdesk/pkg/audit"
	"github.com/jllopis/campusdesk/pkg/config"
	"github.com/jllopis/campusdesk/pkg/dispatcher"
	"github.com/jllopis/campusdesk/pkg/governance"
	"github.com/jllopis/campusdesk/pkg/guardrails"
	"github.com/jllopis/campusdesk/pkg/llm"
	"github.com/jllopis/campusdesk/pkg/store"
	"github.com/jllopis/campusdesk/pkg/tools"
)

// app holds the collaborators every command shares.
type app struct {
	cfg   *config.Config
	db    *store.SQLite
	caps  *governance.CapabilityMap
	trail audit.Store

	// redactor is nil when store.redact is off.
	redactor audit.Redactor
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return nil, startupError("store", err, fmt.Sprintf("check that %s is writable", cfg.Store.Path))
	}
	a := &app{cfg: cfg, db: db, redactor: newRedactor(cfg.Store.Redact)}

	if cfg.Store.Fixtures != "" {
		if err := a.seedIfEmpty(ctx, cfg.Store.Fixtures); err != nil {
			db.Close()
			return nil, err
		}
	}

	cat, err := tools.Standard(db)
	if err != nil {
		db.Close()
		return nil, startupError("tools", err, "")
	}
	a.caps, err = governance.NewCapabilityMap(ctx, cat, governance.DefaultGrants, governance.FilterFromConfig(cfg.Governance))
	if err != nil {
		db.Close()
		return nil, startupError("governance", err, "check governance.deny_tools and governance.policies")
	}

	if cfg.Store.Audit {
		trail, err := audit.NewSQLiteStore(ctx, db.DB())
		if err != nil {
			db.Close()
			return nil, startupError("audit", err, "")
		}
		a.trail = trail
	}
	return a, nil
}

func newRedactor(mode string) audit.Redactor {
	switch mode {
	case "off":
		return nil
	case "hash":
		return guardrails.New(guardrails.WithPIIFilter(guardrails.PIIFilterHash))
	default:
		return guardrails.New(guardrails.WithPIIFilter(guardrails.PIIFilterMask))
	}
}

// auditTrail returns the redacting audit store, or nil when auditing is off.
func (a *app) auditTrail() audit.Store {
	if a.trail == nil {
		return nil
	}
	return audit.Redacting(a.trail, a.redactor)
}

func (a *app) Close() error {
	return a.db.Close()
}

// seedIfEmpty loads fixtures only into a store with no records, so a
// persistent database is not seeded twice.
func (a *app) seedIfEmpty(ctx context.Context, path string) error {
	for _, kind := range store.Kinds() {
		rows, err := a.db.List(ctx, kind, store.Filter{Limit: 1})
		if err != nil {
			return startupError("fixtures", err, "")
		}
		if len(rows) > 0 {
			slog.InfoContext(ctx, "store.fixtures.skipped", slog.String("path", path))
			return nil
		}
	}
	n, err := loadFixtures(ctx, a.db, path)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "store.fixtures.loaded", slog.String("path", path), slog.Int("records", n))
	return nil
}

func loadFixtures(ctx context.Context, s store.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, usageError("cannot open fixtures", err.Error())
	}
	defer f.Close()
	fx, err := store.DecodeFixtures(f)
	if err != nil {
		return 0, startupError("fixtures", err, "fixture keys must be record kinds such as teacher or section")
	}
	n, err := fx.Load(ctx, s)
	if err != nil {
		return n, startupError("fixtures", err, "")
	}
	return n, nil
}

func (a *app) oracle() (llm.Provider, error) {
	oracle, err := llm.New(a.cfg.LLM)
	if err != nil {
		return nil, configError(err, "llm.provider must be openai, ollama or mock")
	}
	return oracle, nil
}

func (a *app) dispatcher(oracle llm.Provider, extra ...dispatcher.Option) (*dispatcher.Dispatcher, error) {
	opts := []dispatcher.Option{
		dispatcher.WithModel(a.cfg.LLM.Model),
		dispatcher.WithTemperature(a.cfg.LLM.Temperature),
		dispatcher.WithMaxRounds(a.cfg.Dispatcher.MaxRounds),
		dispatcher.WithMaxParallel(a.cfg.Dispatcher.MaxParallel),
		dispatcher.WithLogger(slog.Default()),
	}
	if a.trail != nil {
		opts = append(opts, dispatcher.WithAudit(a.trail))
	}
	if a.redactor != nil {
		opts = append(opts, dispatcher.WithRedactor(a.redactor))
	}
	if path := a.cfg.Dispatcher.PromptsFile; path != "" {
		prompts, err := dispatcher.LoadPrompts(path)
		if err != nil {
			return nil, configError(err, "dispatcher.prompts_file maps admin, teacher or student to prompt text")
		}
		opts = append(opts, dispatcher.WithPrompts(prompts))
	}
	d, err := dispatcher.New(oracle, a.caps, append(opts, extra...)...)
	if err != nil {
		return nil, startupError("dispatcher", err, "")
	}
	return d, nil
}
