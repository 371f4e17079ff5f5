package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/crawlvec/internal/api/handlers"
	"github.com/cloo-solutions/crawlvec/internal/api/middleware"
	"github.com/cloo-solutions/crawlvec/internal/chroma"
	"github.com/cloo-solutions/crawlvec/internal/config"
	"github.com/cloo-solutions/crawlvec/internal/database"
	"github.com/cloo-solutions/crawlvec/internal/domain"
	"github.com/cloo-solutions/crawlvec/internal/fetcher"
	"github.com/cloo-solutions/crawlvec/internal/jobs"
	"github.com/cloo-solutions/crawlvec/internal/logger"
	"github.com/cloo-solutions/crawlvec/internal/metrics"
	"github.com/cloo-solutions/crawlvec/internal/openai"
	"github.com/cloo-solutions/crawlvec/internal/repository"
	"github.com/cloo-solutions/crawlvec/internal/server"
	"github.com/cloo-solutions/crawlvec/internal/service"
	"github.com/cloo-solutions/crawlvec/internal/storage"
	"github.com/cloo-solutions/crawlvec/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the crawlvec API server. Settings come from CRAWLVEC_* environment variables.",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides CRAWLVEC_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsDir, "Migrations directory")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	log := logger.New(logger.FromFlags(cfg.Debug, cfg.LogFormat))

	if cfg.SentryDSN != "" {
		// 10% sampling in production, everything elsewhere
		sampleRate := 1.0
		if cfg.Environment == "production" {
			sampleRate = 0.1
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Warn("telemetry init failed, continuing without tracing", "error", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	migrationsDir, _ := cmd.Flags().GetString("migrations")

	app, err := NewApp(ctx, cfg, AppOptions{
		Migrate:       !noMigrate,
		MigrationsDir: migrationsDir,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	app.StartWorkers(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Port, "collection", cfg.CollectionName, "store", cfg.StoreEndpoint())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down")

	app.StopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

// AppOptions tune NewApp beyond what the environment config carries.
type AppOptions struct {
	Migrate       bool
	MigrationsDir string
	Logger        *slog.Logger
	// Embedder replaces the OpenAI client when set.
	Embedder service.EmbeddingClient
}

// App is the wired service: router, background workers and the resources
// they hold.
type App struct {
	Handler http.Handler
	Metrics *metrics.Metrics

	workers []*jobs.Worker
	closers []func()
}

// NewApp builds the store backend selected by cfg.StoreURL and the services
// and routes on top of it.
func NewApp(ctx context.Context, cfg *config.Config, opts AppOptions) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	app := &App{}

	backend, err := cfg.StoreBackend()
	if err != nil {
		return nil, err
	}

	var (
		store   service.VectorStore
		sources service.SourceRegistry
	)
	switch backend {
	case config.BackendChroma:
		store = chroma.NewClient(chroma.Config{
			URL:      cfg.StoreURL,
			Token:    cfg.StoreToken,
			Tenant:   cfg.StoreTenant,
			Database: cfg.StoreDatabase,
		})
		log.Info("using chroma store", "endpoint", cfg.StoreURL)
	case config.BackendPostgres:
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.StoreURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.closers = append(app.closers, pool.Close)
		log.Info("connected to database", "endpoint", cfg.StoreEndpoint())

		if opts.Migrate {
			dir := opts.MigrationsDir
			if dir == "" {
				dir = database.DefaultMigrationsDir
			}
			if err := database.Migrate(cfg.StoreURL, dir, log); err != nil {
				app.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		store = repository.NewCollectionRepository(pool, cfg.StoreEndpoint())
		sources = repository.NewSourceRepository(pool)
	}

	embedder := opts.Embedder
	if embedder == nil {
		if cfg.HasEmbeddings() {
			embedder = openai.NewClientWithConfig(openai.Config{
				APIKey:              cfg.OpenAIAPIKey,
				BaseURL:             cfg.EmbeddingBaseURL,
				EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
				EmbeddingDimensions: cfg.EmbeddingDimensions,
			})
		} else {
			log.Warn("no embedding provider configured; crawl and search will fail")
			embedder = NoOpEmbeddingClient{}
		}
	}

	m := metrics.New()
	app.Metrics = m

	indexOpts := []service.IndexingOption{service.WithRecorder(m), service.WithLogger(log)}
	if sources != nil {
		indexOpts = append(indexOpts, service.WithSourceRegistry(sources))
	}

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Info("snapshot bucket ready", "bucket", cfg.S3Bucket)
		indexOpts = append(indexOpts, service.WithSnapshotStore(s3Client))
	}

	pageFetcher := fetcher.New(fetcher.Config{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.FetchUserAgent,
		MaxBytes:  cfg.FetchMaxBytes,
		RateLimit: cfg.FetchRateLimit,
	})

	indexingSvc := service.NewIndexingService(pageFetcher, embedder, store, cfg.CollectionName, indexOpts...)
	searchSvc := service.NewSearchService(embedder, store, cfg.CollectionName, m)
	collectionSvc := service.NewCollectionService(store, cfg.CollectionName, sources, log)

	if cfg.HasRefresh() {
		if sources == nil {
			log.Warn("refresh interval ignored: source registry requires the postgres backend")
		} else {
			refresher := jobs.NewRefreshWorker(sources, indexingSvc, cfg.CollectionName, cfg.RefreshInterval, log)
			app.workers = append(app.workers, jobs.NewWorker("refresh", refresher, cfg.RefreshInterval, log))
		}
	}

	routerCfg := server.RouterConfig{
		CrawlHandler:      handlers.NewCrawlHandler(indexingSvc),
		SearchHandler:     handlers.NewSearchHandler(searchSvc),
		CollectionHandler: handlers.NewCollectionHandler(collectionSvc),
		Metrics:           m,
		Logger:            log,
		Collection:        cfg.CollectionName,
	}
	if cfg.APIKey != "" {
		routerCfg.AuthValidator = middleware.StaticKey(cfg.APIKey)
	}
	app.Handler = server.NewRouter(routerCfg)

	return app, nil
}

// StartWorkers runs the background workers until ctx ends or StopWorkers is called.
func (a *App) StartWorkers(ctx context.Context) {
	for _, w := range a.workers {
		go w.Start(ctx)
	}
}

func (a *App) StopWorkers() {
	for _, w := range a.workers {
		w.Stop()
	}
}

// Close releases the store connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NoOpEmbeddingClient stands in when no embedding provider is configured.
type NoOpEmbeddingClient struct{}

func (NoOpEmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, domain.ErrEmbeddingsNotConfigured
}
