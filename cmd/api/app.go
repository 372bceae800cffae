package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/prodpulse/prodpulse/internal/api/handlers"
	apimiddleware "github.com/prodpulse/prodpulse/internal/api/middleware"
	"github.com/prodpulse/prodpulse/internal/classify"
	"github.com/prodpulse/prodpulse/internal/config"
	"github.com/prodpulse/prodpulse/internal/connector"
	"github.com/prodpulse/prodpulse/internal/connector/reddit"
	"github.com/prodpulse/prodpulse/internal/connector/youtube"
	"github.com/prodpulse/prodpulse/internal/ingest"
	pulsemetrics "github.com/prodpulse/prodpulse/internal/metrics"
	"github.com/prodpulse/prodpulse/internal/observability"
	"github.com/prodpulse/prodpulse/internal/openai"
	"github.com/prodpulse/prodpulse/internal/repository"
	"github.com/prodpulse/prodpulse/internal/retry"
	"github.com/prodpulse/prodpulse/internal/search"
	"github.com/prodpulse/prodpulse/internal/summarize"
	"github.com/prodpulse/prodpulse/internal/vectorstore"
	"github.com/prodpulse/prodpulse/internal/vectorsync"
	"github.com/prodpulse/prodpulse/pkg/database"
)

const maxBackoff = 30 * time.Second

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg      *config.Config
	db       *pgxpool.Pool
	logger   *slog.Logger
	server   *http.Server
	pipeline *pipelineRunner
}

// newApp builds the dependency graph.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL,
		database.WithAfterConnect(func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metrics := observability.NewPipelineMetrics()

	itemsRepo := repository.NewSourceItemsRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	classificationsRepo := repository.NewClassificationsRepository(db)
	recordsRepo := repository.NewVectorRecordsRepository(db)
	productsRepo := repository.NewProductsRepository(db)
	metricsRepo := repository.NewMetricsRepository(db)

	store := vectorstore.NewPgVectorStore(db)

	aiClient := openai.NewClient(cfg.OpenAIAPIKey,
		openai.WithDimensions(cfg.EmbeddingDimensions),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)

	policy := retry.New(cfg.MaxAttempts, cfg.BaseBackoff, maxBackoff)

	redditClient := reddit.NewClient(reddit.ClientOptions{UserAgent: cfg.RedditUserAgent})

	connectors := []connector.Connector{redditClient}
	suggesters := map[string]connector.SourceSuggester{"reddit": redditClient}

	if cfg.YouTubeAPIKey != "" {
		youtubeClient := youtube.NewClient(youtube.ClientOptions{APIKey: cfg.YouTubeAPIKey})
		connectors = append(connectors, youtubeClient)
		suggesters["youtube"] = youtubeClient
	} else {
		logger.Info("youtube connector disabled (YOUTUBE_API_KEY not set)")
	}

	discovery := connector.NewDiscovery(suggesters, logger)

	coordinator := ingest.NewCoordinator(
		connectors, itemsRepo, cfg.IdentityScope, cfg.IngestBatchSize, metrics, logger)

	provider := classify.NewOpenAIProvider(aiClient, cfg.ClassifierModel)
	engine := classify.NewEngine(
		ledgerRepo, classificationsRepo, provider, policy, metrics, logger,
		cfg.ClassifyBatchSize, cfg.ClaimStaleness)

	syncer := vectorsync.NewSyncer(
		ledgerRepo, classificationsRepo, recordsRepo, aiClient, store, policy, metrics, logger,
		cfg.EmbeddingModel, cfg.SyncBatchSize, cfg.ClaimStaleness)

	reconciler := vectorsync.NewReconciler(recordsRepo, itemsRepo, classificationsRepo, store, aiClient, logger)

	aggregator := pulsemetrics.NewAggregator(metricsRepo)

	queryCache, err := lru.New[string, []float32](cfg.SearchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create search cache: %w", err)
	}

	searchService := search.NewService(search.Params{
		Embedder:   aiClient,
		Store:      store,
		QueryCache: queryCache,
		Logger:     logger,
	})

	summaryService := summarize.NewService(aiClient, itemsRepo, policy, cfg.SummaryModel, logger)

	pipelineHandler := handlers.NewPipelineHandler(coordinator, engine, syncer, reconciler, ledgerRepo, discovery)
	metricsHandler := handlers.NewMetricsHandler(aggregator)
	searchHandler := handlers.NewSearchHandler(searchService)
	summaryHandler := handlers.NewSummaryHandler(summaryService)
	productsHandler := handlers.NewProductsHandler(productsRepo)
	healthHandler := handlers.NewHealthHandler()

	router := chi.NewRouter()
	router.Use(apimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)

	router.Get("/health", healthHandler.Check)

	router.Route("/v1", func(r chi.Router) {
		r.Post("/pipeline/ingest", pipelineHandler.TriggerIngest)
		r.Post("/pipeline/classify", pipelineHandler.TriggerClassify)
		r.Post("/pipeline/sync", pipelineHandler.TriggerSync)
		r.Post("/pipeline/reconcile", pipelineHandler.Reconcile)
		r.Post("/pipeline/repair", pipelineHandler.Repair)
		r.Post("/pipeline/discover", pipelineHandler.Discover)

		r.Get("/items/failed", pipelineHandler.ListFailed)
		r.Post("/items/{id}/requeue", pipelineHandler.Requeue)

		r.Get("/metrics", metricsHandler.Get)
		r.Post("/search", searchHandler.Search)

		r.Post("/products", productsHandler.Create)
		r.Get("/products", productsHandler.List)
		r.Get("/products/{id}", productsHandler.Get)
		r.Get("/products/{id}/summary", summaryHandler.Get)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:    cfg,
		db:     db,
		logger: logger,
		server: server,
		pipeline: &pipelineRunner{
			coordinator: coordinator,
			engine:      engine,
			syncer:      syncer,
			products:    productsRepo,
			lookback:    cfg.PollInterval,
			logger:      logger,
		},
	}, nil
}

// pipelineRunner is the scheduled unit of work: one full ingest -> classify ->
// sync pass over all tracked products.
type pipelineRunner struct {
	coordinator *ingest.Coordinator
	engine      *classify.Engine
	syncer      *vectorsync.Syncer
	products    *repository.ProductsRepository
	lookback    time.Duration
	logger      *slog.Logger
}

// RunOnce executes one pipeline pass. Stage failures are logged and do not
// stop later stages: classification and sync also drain work left over from
// earlier passes.
func (p *pipelineRunner) RunOnce(ctx context.Context) error {
	products, err := p.products.List(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}

	var hints []string

	for _, product := range products {
		hints = append(hints, product.Name)
		hints = append(hints, product.Aliases...)
	}

	since := time.Now().Add(-p.lookback)

	if _, err := p.coordinator.Run(ctx, since, hints); err != nil {
		p.logger.Error("scheduled ingest failed", "error", err)
	}

	if _, err := p.engine.Run(ctx); err != nil {
		p.logger.Error("scheduled classification failed", "error", err)
	}

	if _, err := p.syncer.Run(ctx); err != nil {
		p.logger.Error("scheduled vector sync failed", "error", err)
	}

	return nil
}
