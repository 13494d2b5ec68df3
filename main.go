package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"streakAPI/handlers"
	"streakAPI/internal/config"
	"streakAPI/internal/store"
	"streakAPI/internal/workers"
	"streakAPI/middleware"
	"streakAPI/services"
	"streakAPI/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log, err := cfg.NewLogger()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	clerk.SetKey(cfg.ClerkSecretKey)
	log.Info("Clerk initialized successfully")

	dbPool, err := store.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer func() {
		log.Info("Closing database connection pool...")
		dbPool.Close()
	}()
	log.Info("Successfully connected to database")

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.EnsureSchema(schemaCtx, dbPool); err != nil {
		schemaCancel()
		log.WithError(err).Fatal("Failed to prepare schema")
	}
	schemaCancel()

	badgeTable, err := config.LoadBadgeTable(cfg.BadgesFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to load badge table")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	streakStore := store.NewPgStreakStore(dbPool)
	activityStore := store.NewPgActivityStore(dbPool)

	streakService, err := services.NewStreakService(services.StreakServiceConfig{
		Streaks:          streakStore,
		Badges:           store.NewPgBadgeStore(dbPool),
		Oracle:           activityStore,
		Counter:          activityStore,
		Days:             activityStore,
		Table:            badgeTable,
		Logger:           log,
		Metrics:          services.NewMetrics(registry),
		MaxAttempts:      cfg.MaxAttempts,
		RecalculateBelow: cfg.RecalculateBelow,
		CacheSize:        cfg.CacheSize,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to build streak service")
	}

	reconcileLoc, err := utils.LoadLocation(cfg.ReconcileTimezone)
	if err != nil {
		log.WithError(err).Fatal("Invalid reconcile timezone")
	}
	worker := workers.NewReconciliationWorker(streakStore, streakService, reconcileLoc, log)
	if err := worker.Start(cfg.ReconcileSchedule); err != nil {
		log.WithError(err).Fatal("Failed to start reconciliation worker")
	}

	streakHandler := handlers.NewStreakHandler(streakService, activityStore, log)
	httpMetrics := middleware.NewHTTPMetrics(registry)
	rateLimiter := middleware.NewRateLimiter(5, 30)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go rateLimiter.Cleanup(bgCtx)

	r := mux.NewRouter()
	r.Use(rateLimiter.Middleware)
	r.Use(httpMetrics.Middleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))).Methods("GET")

	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret, http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "streak-api"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware(log))
	handlers.RegisterStreakRoutes(protected, streakHandler)

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Timezone", "X-Pprof-Secret"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Error starting server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	worker.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown error")
	}

	log.Info("Server shutdown complete")
}
