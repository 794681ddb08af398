package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/campusdesk/pkg/config"
	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/dispatcher"
	kerrors "github.com/jllopis/campusdesk/pkg/errors"
	"github.com/jllopis/campusdesk/pkg/governance"
	ktesting "github.com/jllopis/campusdesk/pkg/testing"
	"github.com/jllopis/campusdesk/pkg/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testTokens = []config.TokenConfig{
	{Token: "t-teacher", Role: "teacher", Sub: 1, Name: "Ms. Rivera"},
	{Token: "t-student", Role: "Student", Sub: 7, Name: "Sam"},
	{Token: "t-janitor", Role: "janitor", Sub: 3, Name: "Joe"},
}

// recordingTurns answers every turn with a canned response.
type recordingTurns struct {
	mu    sync.Mutex
	reqs  []dispatcher.TurnRequest
	reply dispatcher.TurnResponse
}

func (r *recordingTurns) HandleTurn(ctx context.Context, req dispatcher.TurnRequest) dispatcher.TurnResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	resp := r.reply
	if req.Claims != nil {
		resp.Role = core.Role(req.Claims.Role)
	}
	return resp
}

func postChat(t *testing.T, h http.Handler, token, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out Response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestChatRequestValidation(t *testing.T) {
	turns := &recordingTurns{reply: dispatcher.TurnResponse{Text: "ok", Status: dispatcher.StatusSuccess}}
	srv := New(turns, NewStaticAuthenticator(testTokens))

	tests := []struct {
		name    string
		token   string
		body    string
		status  int
		message string
	}{
		{"missing token", "", `{"message":"hi"}`, http.StatusUnauthorized, "Missing or invalid token"},
		{"unknown token", "nope", `{"message":"hi"}`, http.StatusUnauthorized, "Missing or invalid token"},
		{"unknown role", "t-janitor", `{"message":"hi"}`, http.StatusForbidden, "Invalid or missing user role"},
		{"missing message", "t-teacher", `{}`, http.StatusBadRequest, "Message is required"},
		{"empty message", "t-teacher", `{"message":""}`, http.StatusBadRequest, "Message is required"},
		{"malformed body", "t-teacher", `{"message":`, http.StatusBadRequest, "Message is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := postChat(t, srv.Handler(), tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, out.Message)
			assert.Equal(t, "failed", out.Status)
		})
	}
	assert.Empty(t, turns.reqs, "rejected requests must not reach the dispatcher")
}

func TestChatPassesVerifiedClaims(t *testing.T) {
	turns := &recordingTurns{reply: dispatcher.TurnResponse{Text: "Here you go.", Status: dispatcher.StatusSuccess, RunID: "run-1"}}
	srv := New(turns, NewStaticAuthenticator(testTokens))

	rec, out := postChat(t, srv.Handler(), "t-student", `{"message":"my grades","role":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Response{Message: "Here you go.", Status: "success", Role: "student", RunID: "run-1"}, out)

	require.Len(t, turns.reqs, 1)
	req := turns.reqs[0]
	require.NotNil(t, req.Claims)
	assert.Equal(t, "student", req.Claims.Role)
	assert.Equal(t, int64(7), req.Claims.Subject)
	assert.Equal(t, "my grades", req.Message)
}

func TestChatMapsFailureCodes(t *testing.T) {
	tests := []struct {
		code   kerrors.ErrorCode
		status int
	}{
		{kerrors.CodeOracleUnavailable, http.StatusServiceUnavailable},
		{kerrors.CodeMaxRounds, http.StatusUnprocessableEntity},
		{kerrors.CodeInternal, http.StatusInternalServerError},
		{"", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			turns := &recordingTurns{reply: dispatcher.TurnResponse{Text: "nope", Status: dispatcher.StatusFailed, Code: tt.code}}
			srv := New(turns, NewStaticAuthenticator(testTokens))
			rec, out := postChat(t, srv.Handler(), "t-teacher", `{"message":"hi"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "failed", out.Status)
			assert.Equal(t, string(tt.code), out.Code)
		})
	}
}

func TestChatRateLimitIsPerIdentity(t *testing.T) {
	turns := &recordingTurns{reply: dispatcher.TurnResponse{Text: "ok", Status: dispatcher.StatusSuccess}}
	srv := New(turns, NewStaticAuthenticator(testTokens), WithRateLimit(0.001, 1))

	rec, _ := postChat(t, srv.Handler(), "t-teacher", `{"message":"one"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, out := postChat(t, srv.Handler(), "t-teacher", `{"message":"two"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(kerrors.CodeRateLimit), out.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec, _ = postChat(t, srv.Handler(), "t-student", `{"message":"three"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, turns.reqs, 2)
}

func TestIdleLimitersArePruned(t *testing.T) {
	turns := &recordingTurns{reply: dispatcher.TurnResponse{Text: "ok", Status: dispatcher.StatusSuccess}}
	srv := New(turns, NewStaticAuthenticator(testTokens), WithRateLimit(1, 1))
	clock := time.Unix(1000, 0)
	srv.now = func() time.Time { return clock }

	rec, _ := postChat(t, srv.Handler(), "t-teacher", `{"message":"one"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = postChat(t, srv.Handler(), "t-teacher", `{"message":"two"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, srv.limiters, 1)

	clock = clock.Add(2 * time.Minute)
	rec, _ = postChat(t, srv.Handler(), "t-student", `{"message":"three"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, srv.limiters, 1)
	_, kept := srv.limiters[limiterKey{role: core.RoleStudent, id: 7}]
	assert.True(t, kept)

	rec, _ = postChat(t, srv.Handler(), "t-teacher", `{"message":"four"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, srv.limiters, 2)
}

func TestChatEndToEnd(t *testing.T) {
	cat, err := tools.NewCatalog(&tools.Descriptor{
		Name:        "whoami",
		Domain:      "session",
		Description: "Return the caller's identity.",
		Gate:        tools.Allow("Not allowed", core.RoleTeacher),
		Handler: func(_ context.Context, sc *core.SessionContext, _ tools.Args) tools.Result {
			return tools.OK(map[string]any{"id": sc.IdentityID()})
		},
	})
	require.NoError(t, err)
	caps, err := governance.NewCapabilityMap(context.Background(), cat, map[core.Role][]governance.Grant{
		core.RoleTeacher: {{Domain: "session"}},
	}, nil)
	require.NoError(t, err)

	oracle := ktesting.NewScenarioProvider().
		AddToolCallResponse(ktesting.NewToolCall("whoami").WithID("c1").Build()).
		AddResponse("You are teacher 1.").
		AddErrorResponse(errors.New("connection refused"))
	d, err := dispatcher.New(oracle, caps)
	require.NoError(t, err)
	srv := New(d, NewStaticAuthenticator(testTokens))

	rec, out := postChat(t, srv.Handler(), "t-teacher", `{"message":"who am I?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "You are teacher 1.", out.Message)
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, "teacher", out.Role)

	toolMsg := oracle.Requests()[1].Messages[3]
	assert.JSONEq(t, `{"status":"success","data":{"id":1}}`, toolMsg.Content)

	rec, out = postChat(t, srv.Handler(), "t-teacher", `{"message":"again"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, dispatcher.UnavailableText, out.Message)
}

func TestHealthz(t *testing.T) {
	registry := core.NewHealthRegistry()
	registry.Register("store", core.PingChecker(func(context.Context) error { return nil }))
	srv := New(&recordingTurns{}, NewStaticAuthenticator(nil), WithHealth(registry))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"HEALTHY"`)

	registry.Register("oracle", core.HealthCheckerFunc(func(context.Context) core.HealthResult {
		return core.HealthResult{Status: core.HealthUnhealthy, Component: "oracle", Message: "circuit open"}
	}))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "circuit open")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "campusdesk_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := New(&recordingTurns{}, NewStaticAuthenticator(nil), WithGatherer(reg))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "campusdesk_test_total 1")

	plain := New(&recordingTurns{}, NewStaticAuthenticator(nil))
	rec = httptest.NewRecorder()
	plain.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}
