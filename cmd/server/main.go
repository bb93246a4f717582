package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lab-backend/internal/auth"
	"lab-backend/internal/cache"
	"lab-backend/internal/config"
	"lab-backend/internal/database"
	"lab-backend/internal/db"
	h "lab-backend/internal/http"
	"lab-backend/internal/handlers"
	"lab-backend/internal/health"
	"lab-backend/internal/logger"
	"lab-backend/internal/middleware"
	"lab-backend/internal/repositories"
	"lab-backend/internal/services"
	"lab-backend/internal/sms"
	"lab-backend/internal/storage"
	"lab-backend/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Setup(logger.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	// Money is rendered as JSON numbers with two decimals
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("host", cfg.Database.Host).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Name).Msg("connected to database")

	if err := database.NewMigrator(pool, migrations.FS).RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	if *migrateOnly {
		return
	}

	var cacheCheck func(context.Context) bool
	if cfg.Redis.Enabled {
		if err := cache.Init(cache.Options{
			Host: cfg.Redis.Host, Port: cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
		}); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, cash book caching disabled")
		} else {
			log.Info().Str("host", cfg.Redis.Host).Msg("connected to redis")
		}
		defer cache.Close()
		cacheCheck = cache.IsHealthy
	}

	router := buildRouter(ctx, cfg, pool, cacheCheck)
	handler := middleware.PanicRecovery(middleware.RequestLogging(middleware.MetricsMiddleware(middleware.NewCORS(cfg)(router))))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func buildRouter(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, cacheCheck func(context.Context) bool) http.Handler {
	// Repositories
	invoiceRepo := repositories.NewInvoiceRepository(pool)
	invoiceRepo.LockTimeout = time.Duration(cfg.Database.LockTimeoutMs) * time.Millisecond
	doctorRepo := repositories.NewDoctorRepository(pool)
	catalogRepo := repositories.NewCatalogRepository(pool)
	auditRepo := repositories.NewAuditLogRepository(pool)
	payoutRepo := repositories.NewPayoutRepository(pool)
	purchaseRepo := repositories.NewPurchaseRepository(pool)
	entryRepo := repositories.NewCashBookEntryRepository(pool)

	var dues services.DueCollectionSource = repositories.NewPaymentEventRepository(pool)
	if cfg.CashBook.DueSource == config.DueSourceAuditLog {
		dues = repositories.NewAuditReplaySource(pool)
	}
	log.Info().Str("due_source", cfg.CashBook.DueSource).Msg("cash book due collections source")

	// Services
	commissionService := services.NewCommissionService(doctorRepo, invoiceRepo,
		time.Duration(cfg.Commission.TieBreakDays)*24*time.Hour)

	var notifier services.InvoiceNotifier
	switch cfg.Notify.Provider {
	case "fast2sms":
		notifier = services.NewNotificationService(sms.NewFast2SMSService(cfg.Notify.Fast2SMSKey, sms.SMSConfig{
			Route: cfg.Notify.Route, SenderID: cfg.Notify.SenderID, TemplateID: cfg.Notify.TemplateID,
		}), cfg.Notify.LabName)
	case "mock":
		notifier = services.NewNotificationService(sms.NewMockSMSService(), cfg.Notify.LabName)
	}

	invoiceService := services.NewInvoiceService(invoiceRepo, catalogRepo, commissionService, auditRepo, notifier)
	payoutService := services.NewPayoutService(doctorRepo, payoutRepo, invoiceRepo, auditRepo)

	cashBookService := services.NewCashBookService(services.CashBookSources{
		Receipts:  invoiceRepo,
		Dues:      dues,
		Payouts:   payoutRepo,
		Purchases: purchaseRepo,
		Entries:   entryRepo,
	}, entryRepo, time.Duration(cfg.CashBook.MaxRangeDays)*24*time.Hour)
	cashBookService.CacheTTL = time.Duration(cfg.CashBook.CacheTTLSeconds) * time.Second

	if cfg.R2Enabled() {
		store, err := storage.NewR2Store(ctx, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("cash book export archival disabled")
		} else {
			cashBookService.Archive = store
			log.Info().Str("bucket", cfg.R2.Bucket).Msg("cash book exports archived to R2")
		}
	}

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(auth.NewJWTManager(cfg))

	return h.NewRouter(
		handlers.NewInvoiceHandler(invoiceService),
		handlers.NewCommissionHandler(commissionService),
		handlers.NewCashBookHandler(cashBookService),
		handlers.NewDoctorHandler(payoutService),
		handlers.NewHealthHandler(health.NewHealthChecker(pool, cacheCheck)),
		authMiddleware,
	)
}
