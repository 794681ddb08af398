// Package server exposes the dispatcher over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/dispatcher"
	kerrors "github.com/jllopis/campusdesk/pkg/errors"
)

// TurnHandler runs one conversation turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req dispatcher.TurnRequest) dispatcher.TurnResponse
}

// Response is the JSON body of every chat reply, success or failure.
type Response struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Role    string `json:"role,omitempty"`
	Code    string `json:"code,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

const claimsKey = "campusdesk.claims"

// Server is the HTTP transport.
type Server struct {
	turns    TurnHandler
	auth     Authenticator
	health   *core.HealthRegistry
	gatherer prometheus.Gatherer
	log      *slog.Logger

	rateLimit rate.Limit
	rateBurst int
	mu        sync.Mutex
	limiters  map[limiterKey]*visitor
	lastSweep time.Time
	now       func() time.Time

	router *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithHealth serves registry results on /healthz.
func WithHealth(registry *core.HealthRegistry) Option {
	return func(s *Server) { s.health = registry }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithRateLimit limits chat requests per identity. A non-positive rate
// disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.rateLimit = rate.Inf
			return
		}
		s.rateLimit = rate.Limit(perSecond)
		s.rateBurst = max(burst, 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds the router.
func New(turns TurnHandler, auth Authenticator, opts ...Option) *Server {
	s := &Server{
		turns:     turns,
		auth:      auth,
		health:    core.NewHealthRegistry(),
		log:       slog.Default(),
		rateLimit: rate.Inf,
		limiters:  make(map[limiterKey]*visitor),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("campusdesk"))
	router.Use(s.accessLog())

	router.GET("/healthz", s.handleHealth)
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	api := router.Group("/api", s.authenticate(), s.limit())
	api.POST("/chat", s.handleChat)

	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server.start", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("server.shutdown", slog.String("addr", addr))
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func fail(c *gin.Context, code kerrors.ErrorCode, message string) {
	c.AbortWithStatusJSON(kerrors.HTTPStatus(code), Response{
		Message: message,
		Status:  string(dispatcher.StatusFailed),
		Code:    string(code),
	})
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			fail(c, kerrors.CodeUnauthenticated, "Missing or invalid token")
			return
		}
		claims, err := s.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			s.log.WarnContext(c.Request.Context(), "server.auth.rejected",
				slog.String("path", c.FullPath()),
				slog.String("error", err.Error()),
			)
			fail(c, kerrors.CodeUnauthenticated, "Missing or invalid token")
			return
		}
		if _, ok := core.ParseRole(claims.Role); !ok {
			fail(c, kerrors.CodeAuthorizationDenied, "Invalid or missing user role")
			return
		}
		sc, err := core.FromClaims(claims)
		if err != nil {
			fail(c, kerrors.CodeUnauthenticated, "Missing or invalid token")
			return
		}
		c.Request = c.Request.WithContext(core.WithSession(c.Request.Context(), sc))
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// limiterKey separates identities that share a numeric id across roles.
type limiterKey struct {
	role core.Role
	id   int64
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// idleTTL is how long a limiter may go unused before it is dropped. By
// then it has refilled to its full burst, so a fresh one behaves the same.
func (s *Server) idleTTL() time.Duration {
	refill := time.Duration(float64(s.rateBurst) / float64(s.rateLimit) * float64(time.Second))
	return max(refill, time.Minute)
}

func (s *Server) limiter(sc *core.SessionContext) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	ttl := s.idleTTL()
	if now.Sub(s.lastSweep) >= ttl {
		for k, v := range s.limiters {
			if now.Sub(v.seen) >= ttl {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	key := limiterKey{role: sc.Role(), id: sc.IdentityID()}
	v, ok := s.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.rateLimit, s.rateBurst)}
		s.limiters[key] = v
	}
	v.seen = now
	return v.limiter
}

func (s *Server) limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimit == rate.Inf {
			c.Next()
			return
		}
		sc, _ := core.SessionFromContext(c.Request.Context())
		if !s.limiter(sc).AllowN(s.now(), 1) {
			c.Header("Retry-After", strconv.Itoa(int(max(1, 1/float64(s.rateLimit)))))
			fail(c, kerrors.CodeRateLimit, "Too many requests")
			return
		}
		c.Next()
	}
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, kerrors.CodeValidationFailed, "Message is required")
		return
	}
	claims := c.MustGet(claimsKey).(core.Claims)

	resp := s.turns.HandleTurn(c.Request.Context(), dispatcher.TurnRequest{
		Claims:  &claims,
		Message: req.Message,
	})

	status := http.StatusOK
	if resp.Status == dispatcher.StatusFailed && resp.Code != "" {
		status = kerrors.HTTPStatus(resp.Code)
	}
	c.JSON(status, Response{
		Message: resp.Text,
		Status:  string(resp.Status),
		Role:    string(resp.Role),
		Code:    string(resp.Code),
		RunID:   resp.RunID,
	})
}

type healthResponse struct {
	Status     core.HealthStatus   `json:"status"`
	Components []core.HealthResult `json:"components"`
}

func (s *Server) handleHealth(c *gin.Context) {
	results, overall := s.health.CheckAll(c.Request.Context())
	status := http.StatusOK
	if overall == core.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, healthResponse{Status: overall, Components: results})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.InfoContext(c.Request.Context(), "server.request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
		)
	}
}
