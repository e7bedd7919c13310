package server

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kpitrack/internal/domain/audit"
	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/directory"
	"kpitrack/internal/domain/kpi"
	"kpitrack/internal/domain/summary"
	"kpitrack/internal/platform/config"
	"kpitrack/internal/platform/db"
	"kpitrack/internal/platform/email"
	"kpitrack/internal/platform/jobs"
	"kpitrack/internal/platform/metrics"
	audithandler "kpitrack/internal/transport/http/handlers/audit"
	authhandler "kpitrack/internal/transport/http/handlers/auth"
	directoryhandler "kpitrack/internal/transport/http/handlers/directory"
	kpihandler "kpitrack/internal/transport/http/handlers/kpi"
	summaryhandler "kpitrack/internal/transport/http/handlers/summary"
	"kpitrack/internal/transport/http/api"
	"kpitrack/internal/transport/http/middleware"
)

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	calc := kpi.CalcParams{
		Cap:       cfg.PercentageCap,
		RedBelow:  cfg.RatingRedBelow,
		GreenFrom: cfg.RatingGreenFrom,
	}
	policy := kpi.Policy{AllowResubmission: cfg.AllowResubmission}

	authStore := auth.NewStore(pool)
	auditSvc := audit.New(pool)
	dirStore := directory.NewStore(pool)
	summarySvc := summary.NewService(pool, calc)
	kpiStore := kpi.NewStore(pool, summarySvc)
	kpiSvc := kpi.NewService(kpiStore, dirStore, calc, policy)

	jobsSvc := jobs.New(pool, summarySvc, kpiSvc)
	jobsSvc.Start(ctx, cfg.SummaryReconcileInterval)

	mailer := email.New(cfg)
	collector := metrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Metrics(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(authStore, auditSvc, cfg.JWTSecret, cfg.TokenTTL).RegisterRoutes(r)
		kpihandler.NewHandler(kpiSvc, authStore, auditSvc, dirStore, mailer, collector).RegisterRoutes(r)
		summaryhandler.NewHandler(summarySvc, dirStore, authStore, auditSvc).RegisterRoutes(r)
		directoryhandler.NewHandler(dirStore, authStore, auditSvc).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc, authStore).RegisterRoutes(r)

		r.With(middleware.RequirePermission(auth.PermSystemAdmin, authStore)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	})

	slog.Info("kpitrack server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
