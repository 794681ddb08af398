package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/campusdesk/pkg/audit"
	"github.com/jllopis/campusdesk/pkg/core"
	kerrors "github.com/jllopis/campusdesk/pkg/errors"
	"github.com/jllopis/campusdesk/pkg/governance"
	"github.com/jllopis/campusdesk/pkg/guardrails"
	"github.com/jllopis/campusdesk/pkg/llm"
	"github.com/jllopis/campusdesk/pkg/store"
	ktesting "github.com/jllopis/campusdesk/pkg/testing"
	"github.com/jllopis/campusdesk/pkg/tools"
)

// probes is a small catalog whose handlers count their invocations.
type probes struct {
	calls atomic.Int64
	caps  *governance.CapabilityMap
}

func newProbes(t *testing.T) *probes {
	t.Helper()
	p := &probes{}
	handler := func(delay time.Duration, answer string) tools.Handler {
		return func(ctx context.Context, _ *core.SessionContext, _ tools.Args) tools.Result {
			p.calls.Add(1)
			time.Sleep(delay)
			return tools.OK(map[string]any{"answer": answer})
		}
	}
	teacher := tools.Allow("Only teachers can probe", core.RoleTeacher)
	cat, err := tools.NewCatalog(
		&tools.Descriptor{Name: "probe_slow", Domain: "probe", Description: "Slow probe.", Gate: teacher, Handler: handler(30*time.Millisecond, "slow")},
		&tools.Descriptor{Name: "probe_fast", Domain: "probe", Description: "Fast probe.", Gate: teacher, Handler: handler(0, "fast")},
		&tools.Descriptor{Name: "probe_panic", Domain: "probe", Description: "Broken probe.", Gate: teacher,
			Handler: func(context.Context, *core.SessionContext, tools.Args) tools.Result {
				p.calls.Add(1)
				panic("boom")
			}},
		&tools.Descriptor{Name: "admin_only", Domain: "admin_probe", Description: "Admin probe.",
			Gate: tools.Allow("Only admins can probe", core.RoleAdmin), Handler: handler(0, "admin")},
	)
	require.NoError(t, err)
	p.caps, err = governance.NewCapabilityMap(context.Background(), cat, map[core.Role][]governance.Grant{
		core.RoleTeacher: {{Domain: "probe"}},
		core.RoleAdmin:   {{Domain: "admin_probe"}},
	}, nil)
	require.NoError(t, err)
	return p
}

func teacherTurn(msg string) TurnRequest {
	return TurnRequest{Role: core.RoleTeacher, IdentityID: 1, DisplayName: "Ms. Rivera", Message: msg}
}

func call(id, name string) llm.ToolCall {
	return ktesting.NewToolCall(name).WithID(id).Build()
}

func TestContextMessageIsPrependedOnce(t *testing.T) {
	p := newProbes(t)
	oracle := ktesting.NewScenarioProvider().
		AddToolCallResponse(call("c1", "probe_fast")).
		AddResponse("All done.")
	d, err := New(oracle, p.caps, WithModel("test-model"))
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), teacherTurn("probe please"))
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "All done.", resp.Text)
	assert.Equal(t, core.RoleTeacher, resp.Role)
	assert.NotEmpty(t, resp.RunID)

	reqs := oracle.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "test-model", reqs[0].Model)

	first := reqs[0].Messages
	require.Len(t, first, 2)
	assert.Equal(t, llm.RoleSystem, first[0].Role)
	assert.Contains(t, first[0].Content, "Note: You are logged in as teacher (Ms. Rivera).")
	assert.Equal(t, llm.RoleUser, first[1].Role)

	second := reqs[1].Messages
	require.Len(t, second, 4)
	systems := 0
	for _, m := range second {
		if m.Role == llm.RoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	assert.Equal(t, llm.RoleTool, second[3].Role)
	assert.Equal(t, "c1", second[3].ToolCallID)
	assert.Equal(t, "probe_fast", second[3].Name)
	assert.JSONEq(t, `{"status":"success","data":{"answer":"fast"}}`, second[3].Content)
}

func TestOfferedToolsFollowRole(t *testing.T) {
	p := newProbes(t)
	oracle := ktesting.NewScenarioProvider().AddResponse("hi").AddResponse("hi")
	d, err := New(oracle, p.caps)
	require.NoError(t, err)

	d.HandleTurn(context.Background(), teacherTurn("hello"))
	d.HandleTurn(context.Background(), TurnRequest{Role: core.RoleStudent, IdentityID: 2, Message: "hello"})

	reqs := oracle.Requests()
	assert.Equal(t, []string{"probe_slow", "probe_fast", "probe_panic"}, ktesting.ToolNames(reqs[0]))
	assert.Empty(t, reqs[1].Tools)
}

func TestSiblingResultsKeepRequestOrder(t *testing.T) {
	p := newProbes(t)
	oracle := ktesting.NewScenarioProvider().
		AddToolCallResponse(call("c1", "probe_slow"), call("c2", "probe_fast")).
		AddResponse("ok")
	d, err := New(oracle, p.caps, WithMaxParallel(2))
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), teacherTurn("both"))
	require.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, int64(2), p.calls.Load())

	msgs := oracle.Requests()[1].Messages
	require.Len(t, msgs, 5)
	require.Len(t, msgs[2].ToolCalls, 2)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
	assert.Equal(t, "probe_slow", msgs[3].Name)
	assert.Equal(t, "c2", msgs[4].ToolCallID)
	assert.Equal(t, "probe_fast", msgs[4].Name)
}

func TestNotPermittedToolNeverReachesHandler(t *testing.T) {
	p := newProbes(t)
	events := ktesting.NewEventCollector()
	trail := audit.NewMemoryStore()
	oracle := ktesting.NewScenarioProvider().
		AddToolCallResponse(call("c1", "admin_only"), call("c2", "drop_tables")).
		AddResponse("I can't do that.")
	d, err := New(oracle, p.caps, WithEmitter(events), WithAudit(trail))
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), teacherTurn("do admin things"))
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Zero(t, p.calls.Load())

	msgs := oracle.Requests()[1].Messages
	assert.JSONEq(t, `{"message":"Only admins can probe","status":"failed"}`, msgs[3].Content)
	assert.JSONEq(t, `{"message":"Tool drop_tables is not available for your role","status":"failed"}`, msgs[4].Content)
	assert.Len(t, events.OfType(core.EventToolRejected), 2)
	assert.Empty(t, events.OfType(core.EventToolDispatched))

	entries, err := trail.List(context.Background(), audit.Filter{RunID: resp.RunID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	codes := map[string]string{}
	for _, e := range entries {
		codes[e.Tool] = e.Code
		assert.Equal(t, "teacher", e.Role)
		assert.Equal(t, 1, e.Round)
	}
	assert.Equal(t, map[string]string{
		"admin_only":  string(kerrors.CodeAuthorizationDenied),
		"drop_tables": string(kerrors.CodeNotPermittedTool),
	}, codes)
}

func TestPanickingSiblingDoesNotStopOthers(t *testing.T) {
	p := newProbes(t)
	oracle := ktesting.NewScenarioProvider().
		AddToolCallResponse(call("c1", "probe_panic"), call("c2", "probe_fast")).
		AddResponse("partial")
	d, err := New(oracle, p.caps)
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), teacherTurn("go"))
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, int64(2), p.calls.Load())

	msgs := oracle.Requests()[1].Messages
	assert.JSONEq(t, `{"message":"The request could not be completed","status":"failed"}`, msgs[3].Content)
	assert.JSONEq(t, `{"status":"success","data":{"answer":"fast"}}`, msgs[4].Content)
}

func TestMaxRoundsStopsBeforeDispatch(t *testing.T) {
	p := newProbes(t)
	oracle := ktesting.NewScenarioProvider().
		AddToolCallResponse(call("c1", "probe_fast")).
		AddToolCallResponse(call("c2", "probe_fast")).
		AddResponse("never reached")
	d, err := New(oracle, p.caps, WithMaxRounds(2))
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), teacherTurn("loop"))
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, MaxRoundsText, resp.Text)
	assert.Equal(t, kerrors.CodeMaxRounds, resp.Code)
	assert.Equal(t, 2, oracle.CallCount())
	assert.Equal(t, int64(1), p.calls.Load())
}

func TestOracleFailureEndsTurn(t *testing.T) {
	p := newProbes(t)
	events := ktesting.NewEventCollector()
	oracle := ktesting.NewScenarioProvider().
		AddErrorResponse(kerrors.New(kerrors.CodeOracleUnavailable, "upstream 503: secret detail", nil))
	d, err := New(oracle, p.caps, WithEmitter(events))
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), teacherTurn("hi"))
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, UnavailableText, resp.Text)
	assert.Equal(t, kerrors.CodeOracleUnavailable, resp.Code)
	assert.NotContains(t, resp.Text, "secret")
	assert.True(t, events.HasEvent(core.EventTurnFailed))
	assert.False(t, events.HasEvent(core.EventTurnCompleted))
}

func TestFallbackWhenOracleIsSilent(t *testing.T) {
	p := newProbes(t)
	oracle := ktesting.NewScenarioProvider().AddResponse("   ")
	d, err := New(oracle, p.caps)
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), teacherTurn("hi"))
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, FallbackText, resp.Text)
}

func TestMissingCallIDsAreFilled(t *testing.T) {
	p := newProbes(t)
	oracle := ktesting.NewScenarioProvider().
		AddToolCallResponse(ktesting.NewToolCall("probe_fast").Build()).
		AddResponse("ok")
	d, err := New(oracle, p.caps)
	require.NoError(t, err)

	d.HandleTurn(context.Background(), teacherTurn("hi"))
	msgs := oracle.Requests()[1].Messages
	id := msgs[2].ToolCalls[0].ID
	assert.NotEmpty(t, id)
	assert.Equal(t, id, msgs[3].ToolCallID)
}

func TestSessionFromClaims(t *testing.T) {
	p := newProbes(t)
	oracle := ktesting.NewScenarioProvider().AddResponse("welcome")
	d, err := New(oracle, p.caps)
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), TurnRequest{
		Claims:  &core.Claims{Role: "root", Subject: 1, Name: "x"},
		Message: "hi",
	})
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, InvalidText, resp.Text)
	assert.Zero(t, oracle.CallCount())

	resp = d.HandleTurn(context.Background(), TurnRequest{
		Role:    core.RoleAdmin, // ignored when claims are present
		Claims:  &core.Claims{Role: "teacher", Subject: 4, Name: "Mr. Chen"},
		Message: "hi",
	})
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, core.RoleTeacher, resp.Role)
	assert.Contains(t, oracle.LastRequest().Messages[0].Content, "Mr. Chen")
}

func TestEmptyMessage(t *testing.T) {
	p := newProbes(t)
	oracle := ktesting.NewScenarioProvider()
	d, err := New(oracle, p.caps)
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), teacherTurn("  "))
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, EmptyText, resp.Text)
	assert.Zero(t, oracle.CallCount())
}

func TestNewRequiresCollaborators(t *testing.T) {
	p := newProbes(t)
	_, err := New(nil, p.caps)
	assert.Error(t, err)
	_, err = New(ktesting.NewScenarioProvider(), nil)
	assert.Error(t, err)
}

// seededStore opens an in-memory store holding one teacher.
func seededStore(t *testing.T) *store.SQLite {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Create(ctx, store.KindTeacher, store.Fields{"name": "Ms. Rivera", "username": "rivera", "email": "rivera@school.test", "password": "x"})
	require.NoError(t, err)
	return db
}

func TestStudentCannotMarkAttendance(t *testing.T) {
	oracle := ktesting.NewScenarioProvider().
		AddToolCallResponse(ktesting.NewToolCall("mark_attendance").WithID("c1").
			WithArg("student_name", "Ana Lopez").WithArg("subject_name", "Algebra").Build()).
		AddResponse("Sorry, you can't do that.")
	db := seededStore(t)
	cat, err := tools.Standard(db)
	require.NoError(t, err)
	caps, err := governance.NewCapabilityMap(context.Background(), cat, governance.DefaultGrants, nil)
	require.NoError(t, err)
	trail := audit.NewMemoryStore()
	d, err := New(oracle, caps, WithAudit(trail))
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), TurnRequest{Role: core.RoleStudent, IdentityID: 1, Message: "mark me present"})
	assert.Equal(t, StatusSuccess, resp.Status)

	msgs := oracle.Requests()[1].Messages
	assert.JSONEq(t, `{"message":"Only teachers can mark attendance","status":"failed"}`, msgs[3].Content)
	entries, err := trail.List(context.Background(), audit.Filter{RunID: resp.RunID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(kerrors.CodeAuthorizationDenied), entries[0].Code)
	rows, err := db.List(context.Background(), store.KindAttendance, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTeacherCreatesAnnouncementWithAuditTrail(t *testing.T) {
	oracle := ktesting.NewScenarioProvider().
		AddToolCallResponse(ktesting.NewToolCall("create_announcement").WithID("c1").
			WithArg("title", "Midterm").WithArg("content", "Room 4").WithArg("teacher_id", 99).Build()).
		AddResponse("Announcement posted.")
	db := seededStore(t)
	cat, err := tools.Standard(db)
	require.NoError(t, err)
	caps, err := governance.NewCapabilityMap(context.Background(), cat, governance.DefaultGrants, nil)
	require.NoError(t, err)
	trail, err := audit.NewSQLiteStore(context.Background(), db.DB())
	require.NoError(t, err)
	d, err := New(oracle, caps, WithAudit(trail))
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), teacherTurn("post the midterm notice"))
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "Announcement posted.", resp.Text)

	rows, err := db.List(context.Background(), store.KindAnnouncement, store.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["teacher_id"])

	entries, err := trail.List(context.Background(), audit.Filter{RunID: resp.RunID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "create_announcement", entries[0].Tool)
	assert.Equal(t, "success", entries[0].Status)
}

func TestLoadPrompts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("teacher: |\n  Be brief.\n"), 0o600))

	prompts, err := LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", prompts.For(core.RoleTeacher))
	assert.Equal(t, DefaultPrompts[core.RoleAdmin], prompts.For(core.RoleAdmin))
	assert.Equal(t, genericPrompt, prompts.For(core.Role("guest")))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("janitor: hi\n"), 0o600))
	_, err = LoadPrompts(bad)
	assert.Error(t, err)
}

func TestAuditTrailIsRedacted(t *testing.T) {
	oracle := ktesting.NewScenarioProvider().
		AddToolCallResponse(ktesting.NewToolCall("create_teacher").WithID("c1").
			WithArg("name", "Mr. Okafor").WithArg("username", "okafor").
			WithArg("email", "okafor@school.test").WithArg("password", "hunter2").Build()).
		AddResponse("Teacher added.")
	db := seededStore(t)
	cat, err := tools.Standard(db)
	require.NoError(t, err)
	caps, err := governance.NewCapabilityMap(context.Background(), cat, governance.DefaultGrants, nil)
	require.NoError(t, err)
	trail := audit.NewMemoryStore()
	d, err := New(oracle, caps,
		WithAudit(trail),
		WithRedactor(guardrails.New(guardrails.WithPIIFilter(guardrails.PIIFilterMask))),
	)
	require.NoError(t, err)

	resp := d.HandleTurn(context.Background(), TurnRequest{Role: core.RoleAdmin, IdentityID: 1, DisplayName: "Root", Message: "add Mr. Okafor"})
	require.Equal(t, StatusSuccess, resp.Status)

	entries, err := trail.List(context.Background(), audit.Filter{RunID: resp.RunID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "success", entries[0].Status)
	assert.NotContains(t, entries[0].Arguments, "hunter2")
	assert.NotContains(t, entries[0].Arguments, "okafor@school.test")
	assert.Contains(t, entries[0].Arguments, `"password":"[SECRET]"`)

	rows, err := db.List(context.Background(), store.KindTeacher, store.Filter{Where: map[string]any{"username": "okafor"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "okafor@school.test", rows[0]["email"])
}
