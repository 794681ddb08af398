package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/dispatcher"
	"github.com/jllopis/campusdesk/pkg/llm"
	"github.com/jllopis/campusdesk/pkg/resilience"
	"github.com/jllopis/campusdesk/pkg/server"
	"github.com/jllopis/campusdesk/pkg/telemetry"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				root.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), root)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions) error {
	cfg := root.cfg
	log := slog.Default()

	reg := telemetry.NewRegistry()
	shutdown, err := telemetry.InitWithConfig(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion,
		telemetry.FromConfig(cfg.Telemetry, reg))
	if err != nil {
		return startupError("telemetry", err, "telemetry.exporter must be none, stdout, otlp or prometheus")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Error("telemetry.shutdown.failed", slog.String("error", err.Error()))
		}
	}()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	oracle, err := a.oracle()
	if err != nil {
		return err
	}
	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		return startupError("metrics", err, "")
	}
	if guarded, ok := oracle.(*llm.GuardedProvider); ok {
		guarded.ObserveBreaker(func(name string, state resilience.CircuitBreakerState) {
			log.Warn("llm.breaker.transition", slog.String("breaker", name), slog.String("state", string(state)))
			metrics.RecordCircuitBreakerState(context.Background(), name, state.Level())
		})
	}
	d, err := a.dispatcher(oracle, dispatcher.WithMetrics(metrics))
	if err != nil {
		return err
	}

	health := core.NewHealthRegistry()
	health.Register("store", core.PingChecker(a.db.Ping))
	if checker, ok := oracle.(core.HealthChecker); ok {
		health.Register("oracle", checker)
	}

	if len(cfg.Server.Tokens) == 0 {
		log.Warn("server.auth.no_tokens", slog.String("hint", "every chat request will be rejected"))
	}
	srv := server.New(d, server.NewStaticAuthenticator(cfg.Server.Tokens),
		server.WithHealth(health),
		server.WithGatherer(reg),
		server.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		server.WithLogger(log),
	)
	return srv.Run(ctx, cfg.Server.Addr)
}
