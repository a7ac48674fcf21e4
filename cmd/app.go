package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/TechFutureAIFPT/hr-support/internal/ai"
	"github.com/TechFutureAIFPT/hr-support/internal/ai/gemini"
	"github.com/TechFutureAIFPT/hr-support/internal/analysis"
	"github.com/TechFutureAIFPT/hr-support/internal/cache"
	"github.com/TechFutureAIFPT/hr-support/internal/extract"
	"github.com/TechFutureAIFPT/hr-support/internal/extract/docx"
	"github.com/TechFutureAIFPT/hr-support/internal/extract/ocr"
	"github.com/TechFutureAIFPT/hr-support/internal/extract/pdfdoc"
	"github.com/TechFutureAIFPT/hr-support/internal/extract/raster"
	"github.com/TechFutureAIFPT/hr-support/internal/lock"
	"github.com/TechFutureAIFPT/hr-support/internal/metrics"
	"github.com/TechFutureAIFPT/hr-support/internal/orchestrator"
	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
	"github.com/TechFutureAIFPT/hr-support/internal/scoring"
	"github.com/TechFutureAIFPT/hr-support/internal/secrets"
	"github.com/TechFutureAIFPT/hr-support/internal/source"
	"github.com/TechFutureAIFPT/hr-support/internal/utils"
)

const (
	mediumMemory   = "memory"
	mediumFile     = "file"
	mediumLease    = "lease"
	mediumAdvisory = "advisory"

	pingAttempts = 3
)

// application holds the wired components shared by the commands.
type application struct {
	config   *Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	engine       *extract.Engine
	orchestrator *orchestrator.Orchestrator
	analyzer     *analysis.Analyzer
	advisor      *ai.Advisor
	controller   *pipeline.Controller
	coordinator  *lock.Coordinator
	scoring      scoring.Config

	pool *pgxpool.Pool
}

type appOptions struct {
	// withModel builds the orchestrator and everything that submits requests.
	withModel bool
	// withLock builds the lock coordinator, connecting to PostgreSQL if the
	// medium needs it.
	withLock bool
}

func newApplication(ctx context.Context, config *Config, log *zap.Logger, opts appOptions) (*application, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &application{
		config:   config,
		logger:   log,
		registry: registry,
		metrics:  metrics.New(registry),
	}

	a.engine = newEngine(config, log, a.metrics)

	scoringCfg := scoring.Default()
	if config.Scoring != "" {
		loaded, err := scoring.Load(config.Scoring)
		if err != nil {
			return nil, err
		}
		scoringCfg = loaded
	}
	a.scoring = scoringCfg

	if opts.withModel {
		if err := a.buildModel(ctx); err != nil {
			return nil, err
		}
	}

	if opts.withLock {
		if err := a.buildLock(ctx); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	return a, nil
}

func newEngine(config *Config, log *zap.Logger, m *metrics.Metrics) *extract.Engine {
	store := cache.New(config.Cache.MaxEntries)

	rasterizer := raster.New(config.Extraction.Pdftoppm)
	deps := extract.Deps{
		PDF:        pdfdoc.Reader{},
		Recognizer: ocr.New(config.Extraction.OCRLanguages...),
		Docx:       docx.Reader{},
		Cache:      store,
		Logger:     log,
		Metrics:    m,
	}
	if rasterizer.Available() {
		deps.Rasterizer = rasterizer
	} else {
		log.Warn("pdftoppm not found, scanned PDFs cannot be OCRed",
			zap.String("binary", config.Extraction.Pdftoppm),
			zap.String("hint", "install poppler-utils or set extraction.pdftoppm"),
		)
	}

	return extract.New(config.Extraction.Options, deps)
}

func (a *application) buildModel(_ context.Context) error {
	creds, err := secrets.LoadCredentials(secrets.CredentialSources{
		Values:    a.config.Credentials.Keys,
		Files:     a.config.Credentials.Files,
		EnvPrefix: a.config.Credentials.EnvPrefix,
	})
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	// Vertex authenticates with application default credentials.
	if len(creds) == 0 && strings.EqualFold(a.config.Model.Backend, gemini.BackendVertex) {
		creds = []string{""}
	}
	if len(creds) == 0 {
		a.logger.Warn("no API keys configured",
			zap.String("hint", "set credentials.keys, credentials.files or "+a.config.Credentials.EnvPrefix+"1.."),
		)
	}

	a.orchestrator = orchestrator.New(creds, gemini.Factory(a.config.Model, a.logger), a.config.Orchestrator, orchestrator.Deps{
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	a.analyzer = analysis.NewAnalyzer(a.orchestrator, a.logger)
	a.advisor = ai.NewAdvisor(a.orchestrator, a.logger, a.config.Model.MaxLogLength)
	a.controller = pipeline.New(pipeline.Deps{
		Extractor: a.engine,
		Submitter: a.orchestrator,
		Logger:    a.logger,
	})

	a.logger.Info("model ready",
		zap.String("model", a.config.Model.Model),
		zap.Int("credentials", a.orchestrator.Credentials()),
		zap.Int("concurrency", a.orchestrator.Concurrency()),
	)
	return nil
}

func (a *application) buildLock(ctx context.Context) error {
	cfg := a.config.Lock
	owner := lock.NewOwnerID()

	var medium lock.Medium
	switch strings.ToLower(strings.TrimSpace(cfg.Medium)) {
	case mediumMemory:
		medium = lock.NewLeaseMedium(lock.NewMemoryStore(), lock.NewHub(), cfg, owner)
	case "", mediumFile:
		// Excludes processes on this host; status is not broadcast.
		store, err := lock.NewFileStore(cfg.WithDefaults().Dir)
		if err != nil {
			return err
		}
		medium = lock.NewLeaseMedium(store, nil, cfg, owner)
	case mediumLease, mediumAdvisory:
		pool, err := a.connectPostgres(ctx)
		if err != nil {
			return err
		}
		broadcaster := lock.NewPostgresBroadcaster(pool, a.config.Postgres.Channel, a.logger)

		if strings.EqualFold(cfg.Medium, mediumAdvisory) {
			medium = lock.NewAdvisoryMedium(pool, broadcaster, cfg, owner)
			break
		}
		store := lock.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		medium = lock.NewLeaseMedium(store, broadcaster, cfg, owner)
	default:
		return fmt.Errorf("unsupported lock medium %q (use %s, %s, %s or %s)", cfg.Medium, mediumFile, mediumMemory, mediumLease, mediumAdvisory)
	}

	a.coordinator = lock.NewCoordinator(medium, cfg, lock.Deps{Logger: a.logger, Metrics: a.metrics})
	return nil
}

func (a *application) connectPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	dsn, err := secrets.Load(secrets.Source{
		Name:  "postgres dsn",
		Value: a.config.Postgres.DSN,
		Env:   "DATABASE_URL",
		File:  a.config.Postgres.DSNFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set postgres.dsn or postgres.dsn-file)", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	// The database often starts alongside the service.
	if err := utils.Retry(ctx, pingAttempts, time.Second, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	a.pool = pool
	return pool, nil
}

// loader builds a source loader; the S3 client is only created when a
// reference needs it.
func (a *application) loader(ctx context.Context, refs []string) (*source.Loader, error) {
	var store source.ObjectStore
	for _, ref := range refs {
		if !strings.HasPrefix(ref, "s3://") {
			continue
		}
		s3, err := source.NewS3Store(ctx, a.config.S3)
		if err != nil {
			return nil, err
		}
		store = s3
		break
	}
	return source.NewLoader(store, 0, a.logger), nil
}

func (a *application) Close(ctx context.Context) {
	var errs []error
	if a.coordinator != nil {
		errs = append(errs, a.coordinator.Close(ctx))
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("closing application", zap.Error(err))
	}
}
