// Package httpapi implements OrbitDock's REST surface: session CRUD, the
// bearer-auth gate that also protects the websocket upgrade, and process
// lifecycle (Start/Shutdown), grounded on go-opencode's internal/server
// package (chi router, same middleware stack, same Config/New/Start/Shutdown
// shape) adapted from a single-process-wide OpenCode instance to OrbitDock's
// multi-session actor model.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/robdel12/orbitdock/internal/apperr"
	"github.com/robdel12/orbitdock/internal/naming"
	"github.com/robdel12/orbitdock/internal/persistence"
	"github.com/robdel12/orbitdock/internal/registry"
	"github.com/robdel12/orbitdock/internal/storage"
	"github.com/robdel12/orbitdock/internal/subscription"
)

// Config holds HTTP server configuration.
type Config struct {
	BindAddr     string
	AuthToken    string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sane HTTP server defaults. WriteTimeout is zero: the
// websocket upgrade route must not be cut off by a fixed response deadline.
func DefaultConfig() Config {
	return Config{
		BindAddr:    "127.0.0.1:4756",
		ReadTimeout: 30 * time.Second,
	}
}

// Deps are the process-wide collaborators handlers are wired against.
type Deps struct {
	Registry *registry.Registry
	Hub      *subscription.Hub
	Store    *storage.Store
	Writer   *persistence.Writer
	Naming   *naming.Guard
	Propose  naming.Proposer
	Clock    func() time.Time

	// Ctx bounds every session actor this server spawns. It must be the
	// daemon's process-lifetime context, never a request context: net/http
	// cancels a request's context as soon as its handler returns, which
	// would kill a just-spawned actor before its first command landed.
	Ctx context.Context

	// WebSocket is the upgrade handler mounted at GET /ws. Kept as an
	// http.Handler rather than importing internal/transport directly so
	// the two packages stay free of an import cycle either direction.
	WebSocket http.Handler
}

// Server is OrbitDock's HTTP server.
type Server struct {
	cfg     Config
	deps    Deps
	router  *chi.Mux
	httpSrv *http.Server
}

// New constructs a Server with routes and middleware wired, ready to Start.
func New(cfg Config, deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	s := &Server{cfg: cfg, deps: deps, router: chi.NewRouter()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if len(s.cfg.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)

	r.Group(func(r chi.Router) {
		r.Use(s.bearerAuth)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Post("/", s.createSession)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Patch("/", s.renameSession)
				r.Delete("/", s.endSession)
				r.Get("/approval", s.listApprovalHistory)
				r.Post("/fork", s.forkSession)
			})
		})

		if s.deps.WebSocket != nil {
			r.Get("/ws", s.deps.WebSocket.ServeHTTP)
		}
	})
}

// bearerAuth enforces spec.md §6's authentication rule: every request other
// than /health must carry the configured token via Authorization: Bearer or
// ?token=. An empty configured token disables auth entirely (local/dev use).
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		if bearerToken(r) != s.cfg.AuthToken {
			writeAppError(w, apperr.New(apperr.KindUnauthorized, "missing or invalid bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start blocks, serving until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.BindAddr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests, including open websocket
// upgrades, until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
