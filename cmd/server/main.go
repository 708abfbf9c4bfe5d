package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Linkboard/internal/api/middleware"
	"Linkboard/internal/api/routes"
	"Linkboard/internal/config"
	"Linkboard/internal/core/resources"
	"Linkboard/internal/core/upvotes"
	"Linkboard/internal/db/migrations"
	postgresRepo "Linkboard/internal/db/postgres"
	"Linkboard/internal/db/redisstore"
	"Linkboard/internal/trigger"
)

func main() {
	cfg := config.ConfigFromEnv()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Info("connected to database")

	if err := migrations.Up(db); err != nil {
		return err
	}
	logger.Info("migrations completed")

	rdb, err := redisstore.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	logger.Info("connected to redis")

	// Trigger dispatch
	httpClient := &http.Client{Timeout: 10 * time.Second}
	var dispatcher upvotes.Dispatcher
	switch cfg.TriggerMode {
	case config.TriggerModeLocal:
		local := trigger.NewLocalDispatcher(trigger.NewSigner(cfg.QStashCurrentSigningKey), httpClient, logger)
		defer local.Close()
		dispatcher = local
	default:
		dispatcher = trigger.NewQStashDispatcher(trigger.QStashConfig{
			BaseURL: cfg.QStashURL,
			Token:   cfg.QStashToken,
		}, httpClient, logger)
	}
	verifier := trigger.NewVerifier(cfg.QStashCurrentSigningKey, cfg.QStashNextSigningKey)

	// Stores
	counters := redisstore.NewCounterStore(rdb, redisstore.CounterOptions{FlagTTL: cfg.UpvoteFlagTTL})
	outbox := redisstore.NewOutbox(rdb)
	broadcaster := redisstore.NewBroadcaster(rdb, logger)
	pageCache := redisstore.NewPageCache(rdb)

	upvoteRepo := postgresRepo.NewUpvoteRepository(db)
	resourceRepo := postgresRepo.NewResourceRepository(db)
	bookmarkRepo := postgresRepo.NewBookmarkRepository(db)

	// Services
	scheduler := upvotes.NewScheduler(redisstore.NewSchedulerLock(rdb), dispatcher,
		upvotes.DefaultSchedulerConfig(cfg.PublicBaseURL), logger)
	upvoteService := upvotes.NewService(upvotes.Deps{
		Counters:    counters,
		Outbox:      outbox,
		Repo:        upvoteRepo,
		Broadcaster: broadcaster,
		Invalidator: pageCache,
		Scheduler:   scheduler,
	}, logger)
	processor := upvotes.NewProcessor(outbox, upvoteRepo, counters, scheduler, cfg.UpvoteBatchSize, logger)
	reconciler := upvotes.NewReconciler(counters, counters, outbox, upvoteRepo, logger)
	resourceService := resources.NewService(resourceRepo, bookmarkRepo, pageCache, upvoteService, logger)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", trigger.SignatureHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret, logger)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)

	routes.RegisterUpvoteRoutes(r, routes.UpvoteRouteDeps{
		Service:        upvoteService,
		Processor:      processor,
		Reconciler:     reconciler,
		Broadcaster:    broadcaster,
		Auth:           authMiddleware,
		Signature:      middleware.RequireSignature(verifier, cfg.PublicBaseURL, logger),
		RateLimit:      rateLimiter,
		AllowedOrigins: streamOrigins(cfg.CORSOrigins),
	})
	routes.RegisterResourceRoutes(r, resourceService, authMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Linkboard API starting",
			"port", cfg.Port,
			"trigger_mode", cfg.TriggerMode,
			"public_base_url", cfg.PublicBaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// streamOrigins maps the CORS wildcard to the websocket "any origin" setting
func streamOrigins(origins []string) []string {
	for _, o := range origins {
		if o == "*" {
			return nil
		}
	}
	return origins
}
