package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lazypower/affect/internal/api"
	"github.com/lazypower/affect/internal/engine"
)

// Server is the affect HTTP API server.
type Server struct {
	engine  *engine.Engine
	logger  *zap.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server around the engine. The engine's logger and
// metrics are reused.
func New(eng *engine.Engine, version string) *Server {
	s := &Server{
		engine:  eng,
		logger:  eng.Logger,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/events", s.handlePostEvents)
			r.Get("/score", s.handleScore)
			r.Get("/fatigue", s.handleFatigue)
			r.Get("/trend", s.handleTrend)
			r.Get("/feedback", s.handleFeedback)
			r.Get("/history", s.handleHistory)
		})
	})
	r.Method(http.MethodGet, "/metrics", s.engine.Metrics.Handler())

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.engine.DB.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, api.Health{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.started).Seconds(),
		DB:      dbOK,
		DBPath:  s.engine.DB.Path,
	})
}

func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
