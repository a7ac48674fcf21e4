// Package server exposes the analysis pipeline over HTTP. A run streams its
// events as newline delimited JSON while holding the exclusive analysis lock.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TechFutureAIFPT/hr-support/internal/ai"
	"github.com/TechFutureAIFPT/hr-support/internal/logger"
	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
	"github.com/TechFutureAIFPT/hr-support/internal/scoring"
)

const (
	DefaultAddr = ":8080"
	// DefaultMaxUploadSize bounds a whole multipart request.
	DefaultMaxUploadSize = 64 << 20
)

type Config struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed-origins"`
	MaxUploadSize  int64    `mapstructure:"max-upload-size"`
	Language       string   `mapstructure:"language"`
}

// Runner starts a pipeline run.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) *pipeline.Stream
}

// Advisor answers questions about an evaluated batch.
type Advisor interface {
	Advise(ctx context.Context, batch ai.Batch, question string) (*ai.Advice, error)
}

// Exclusive runs work under the cross process analysis lock.
type Exclusive interface {
	RunExclusive(ctx context.Context, fn func(ctx context.Context) error) (bool, error)
	Busy() bool
}

type Deps struct {
	Runner   Runner
	Lock     Exclusive
	Advisor  Advisor
	Scoring  scoring.Config
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

type Server struct {
	cfg     Config
	runner  Runner
	lock    Exclusive
	advisor Advisor
	scoring scoring.Config
	logger  *zap.Logger
	handler http.Handler
}

func New(cfg Config, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}

	s := &Server{
		cfg:     cfg,
		runner:  deps.Runner,
		lock:    deps.Lock,
		advisor: deps.Advisor,
		scoring: deps.Scoring,
		logger:  logger.Named(deps.Logger, "server"),
	}
	if len(s.scoring.Criteria) == 0 {
		s.scoring = scoring.Default()
	}
	s.handler = s.routes(deps.Gatherer)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/status", s.status)
		api.Post("/analyze", s.analyze)
		if s.advisor != nil {
			api.Post("/advise", s.advise)
		}
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(started)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
