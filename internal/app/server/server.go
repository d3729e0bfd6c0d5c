package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"hrpayroll/internal/domain/audit"
	"hrpayroll/internal/domain/auth"
	"hrpayroll/internal/domain/payroll"
	"hrpayroll/internal/platform/authz"
	"hrpayroll/internal/platform/config"
	"hrpayroll/internal/platform/crypto"
	"hrpayroll/internal/platform/db"
	"hrpayroll/internal/platform/events"
	"hrpayroll/internal/platform/jobs"
	"hrpayroll/internal/platform/metrics"
	"hrpayroll/internal/platform/runlock"
	"hrpayroll/internal/requestctx"
	"hrpayroll/internal/transport/http/api"
	audithandler "hrpayroll/internal/transport/http/handlers/audit"
	payrollhandler "hrpayroll/internal/transport/http/handlers/payroll"
	"hrpayroll/internal/transport/http/middleware"
)

const appName = "hrpayroll"

// Deps are the collaborators the router needs. Ready reports database readiness.
type Deps struct {
	Config      config.Config
	Logger      *slog.Logger
	Payroll     payrollhandler.RunService
	Jobs        payrollhandler.JobRunner
	Audit       audithandler.Lister
	Idempotency payrollhandler.IdempotencyStore
	Perms       middleware.PermissionChecker
	Metrics     *metrics.Collector
	Ready       func(ctx context.Context) error
}

func NewLogger(cfg config.Config) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(false)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.SlogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", appName),
		slog.String("env", cfg.Environment),
	)
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(httplog.RequestLogger(d.Logger, &httplog.Options{
		Level:         cfg.SlogLevel(),
		Schema:        httplog.SchemaECS,
		RecoverPanics: true,
	}))
	router.Use(chiMiddleware.CleanPath)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:           300,
	}))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(logAttrs)
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))
	if d.Metrics != nil {
		router.Use(middleware.Metrics(d.Metrics))
	}

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if d.Ready != nil {
			if err := d.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled && d.Metrics != nil {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, d.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		payrollhandler.NewHandler(d.Payroll, d.Jobs, d.Perms, d.Idempotency).RegisterRoutes(r)
		if d.Audit != nil {
			audithandler.NewHandler(d.Audit, d.Perms).RegisterRoutes(r)
		}
	})
	return router
}

// logAttrs tags the access log line with the request and actor ids.
func logAttrs(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attrs := []slog.Attr{slog.String("requestId", requestctx.GetRequestID(r.Context()))}
		if actor := requestctx.GetActorID(r.Context()); actor != "" {
			attrs = append(attrs, slog.String("actorId", actor))
		}
		httplog.SetAttrs(r.Context(), attrs...)
		next.ServeHTTP(w, r)
	})
}

// Run wires the service from the environment and serves until SIGINT/SIGTERM.
func Run() error {
	cfg := config.Load()
	logger := NewLogger(cfg)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, db.Migrations()); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
	}

	collector := metrics.New()
	opts, closeDeps, err := payrollOptions(cfg, pool, collector)
	if err != nil {
		return err
	}
	defer closeDeps()

	service := payroll.NewService(payroll.NewStore(pool), opts...)
	jobRunner := jobs.New(pool, service, jobs.Schedule{
		Interval:     cfg.AutoRunInterval,
		Entities:     cfg.AutoRunEntities,
		SpecialistID: cfg.AutoRunSpecialistID,
	})
	jobRunner.Start(ctx)

	perms, err := authz.New(auth.RolePermissions)
	if err != nil {
		return err
	}

	router := NewRouter(Deps{
		Config:      cfg,
		Logger:      logger,
		Payroll:     service,
		Jobs:        jobRunner,
		Audit:       audit.New(pool),
		Idempotency: middleware.NewIdempotencyStore(pool),
		Perms:       perms,
		Metrics:     collector,
		Ready:       pool.Ping,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("payroll server listening", "addr", cfg.Addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("payroll server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// payrollOptions builds the service's optional collaborators from config. The
// returned func releases the connections it opened.
func payrollOptions(cfg config.Config, pool *pgxpool.Pool, collector *metrics.Collector) ([]payroll.Option, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	master, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		return nil, closeAll, err
	}
	sealer, err := master.ForPurpose(crypto.PurposePayslipDocument)
	if err != nil {
		return nil, closeAll, err
	}

	opts := []payroll.Option{
		payroll.WithAudit(audit.New(pool)),
		payroll.WithCounter(collector),
		payroll.WithDocuments(sealer, cfg.PayslipStorageDir),
		payroll.WithWorkers(cfg.RecalcWorkers),
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, func() { _ = client.Close() })
		opts = append(opts, payroll.WithLocker(runlock.NewRedis(client, cfg.RunLockTTL, cfg.RunLockWait)))
		slog.Info("run locks distributed through redis", "addr", cfg.RedisAddr)
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers)
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				slog.Warn("kafka publisher close failed", "err", err)
			}
		})
		opts = append(opts, payroll.WithEvents(publisher, cfg.KafkaTopic))
	} else {
		opts = append(opts, payroll.WithEvents(events.NoopPublisher{}, cfg.KafkaTopic))
	}

	return opts, closeAll, nil
}
