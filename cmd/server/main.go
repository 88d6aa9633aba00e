// Command server runs the invoicing HTTP API together with the background
// VAT validation workers.
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

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	billingapp "github.com/ledgerly/invoicing/internal/application/billing"
	invoicingapp "github.com/ledgerly/invoicing/internal/application/invoicing"
	partyapp "github.com/ledgerly/invoicing/internal/application/party"
	vatidapp "github.com/ledgerly/invoicing/internal/application/vatid"
	"github.com/ledgerly/invoicing/internal/domain/billing"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/tax"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
	"github.com/ledgerly/invoicing/internal/infrastructure/auth"
	"github.com/ledgerly/invoicing/internal/infrastructure/cache"
	"github.com/ledgerly/invoicing/internal/infrastructure/config"
	"github.com/ledgerly/invoicing/internal/infrastructure/logger"
	"github.com/ledgerly/invoicing/internal/infrastructure/migration"
	"github.com/ledgerly/invoicing/internal/infrastructure/persistence"
	"github.com/ledgerly/invoicing/internal/infrastructure/printing"
	"github.com/ledgerly/invoicing/internal/infrastructure/scheduler"
	"github.com/ledgerly/invoicing/internal/infrastructure/storage"
	"github.com/ledgerly/invoicing/internal/infrastructure/telemetry"
	"github.com/ledgerly/invoicing/internal/infrastructure/vatprovider"
	"github.com/ledgerly/invoicing/internal/interfaces/http/handler"
	"github.com/ledgerly/invoicing/internal/interfaces/http/middleware"
	"github.com/ledgerly/invoicing/internal/interfaces/http/router"
	"github.com/ledgerly/invoicing/migrations"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	shutdownTimeout  = 30 * time.Second
	limiterEvictTick = time.Minute
)

func main() {
	hashToken := flag.String("hash-admin-token", "", "Print the bcrypt hash to configure as http.admin_token_hash and exit")
	flag.Parse()
	if *hashToken != "" {
		hash, err := middleware.HashAdminToken(*hashToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to hash token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.FromAppConfig(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server exited with error", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.ServiceVersion = version
	log.Info("Starting invoicing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry
	collector := telemetry.Config{
		Enabled:       cfg.Telemetry.Enabled,
		Endpoint:      cfg.Telemetry.CollectorEndpoint,
		Insecure:      cfg.Telemetry.Insecure,
		ServiceName:   cfg.Telemetry.ServiceName,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
	}
	logCollector := collector
	logCollector.Enabled = collector.Enabled && cfg.Telemetry.LogsEnabled
	logs, err := telemetry.StartLogs(ctx, logCollector, log)
	if err != nil {
		return err
	}
	defer shutdown(log, "log pipeline", logs.Shutdown)
	log = logs.Attach(log)

	profiles, err := telemetry.StartProfiles(telemetry.ProfileConfig{
		Enabled:     cfg.Telemetry.ProfilingEnabled,
		Address:     cfg.Telemetry.PyroscopeAddress,
		Application: cfg.Telemetry.ServiceName,
		User:        cfg.Telemetry.PyroscopeUser,
		Password:    cfg.Telemetry.PyroscopePassword,
		Kinds:       cfg.Telemetry.ProfileTypes,
	}, log)
	if err != nil {
		return err
	}
	defer shutdown(log, "profiler", profiles.Shutdown)

	collector.LinkProfiles = profiles.Enabled()
	traces, err := telemetry.StartTraces(ctx, collector, log)
	if err != nil {
		return err
	}
	defer shutdown(log, "trace pipeline", traces.Shutdown)

	meters, err := telemetry.StartMetrics(ctx, collector, cfg.Telemetry.MetricsInterval, log)
	if err != nil {
		return err
	}
	defer shutdown(log, "metric pipeline", meters.Shutdown)

	metrics, err := telemetry.NewBusinessMetrics(meters.Meter("invoicing"))
	if err != nil {
		return err
	}
	defer func() {
		if err := metrics.Close(); err != nil {
			log.Warn("Error closing business metrics", zap.Error(err))
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.Open(ctx, &cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	if cfg.Telemetry.DBTraceEnabled {
		err := telemetry.TraceQueries(db.DB, telemetry.QueryTracing{
			WithValues: cfg.App.Env == "development",
			SlowAfter:  cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err != nil {
			return err
		}
	}

	if cfg.Database.AutoMigrate {
		if err := applyMigrations(db, log); err != nil {
			return err
		}
	}

	// Caches
	stores, err := cache.Open(ctx, cfg.Redis, cache.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Warn("Error closing caches", zap.Error(err))
		}
	}()

	// Repositories
	sellerRepo := persistence.NewGormSellerRepository(db.DB)
	buyerRepo := persistence.NewGormBuyerRepository(db.DB)
	accountRepo := persistence.NewGormBankAccountRepository(db.DB)
	identityRepo := persistence.NewGormVatIdentityRepository(db.DB)
	planRepo := persistence.NewGormPlanFeatureRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Invoicing
	engine := tax.NewEngine(valueobject.NewEUMembership(cfg.VAT.EUMembers))
	planService := billingapp.NewPlanService(planRepo, stores.Plans, log, billingapp.DefaultPlanServiceConfig())
	invoiceService := invoicingapp.NewInvoiceService(txScope, engine, planService, log)
	allocator := invoicingapp.NewAllocator(cfg.Invoicing.AllocationRetries, metrics, log)
	issuanceService := invoicingapp.NewIssuanceService(txScope, engine, allocator, planService, log,
		invoicingapp.IssuanceServiceConfig{
			Retries:  cfg.Invoicing.AllocationRetries,
			Recorder: metrics,
		})

	// VAT identity validation
	provider, err := vatprovider.New(cfg.VAT, log)
	if err != nil {
		return err
	}
	executor := vatidapp.NewValidationExecutor(identityRepo, provider, stores.Claims, log,
		vatidapp.ValidationExecutorConfig{
			Timeout:   cfg.VAT.VIESTimeout,
			Recompute: invoiceService,
			Recorder:  metrics,
		})
	validationQueue := scheduler.NewPool(scheduler.PoolConfig{
		Workers:       cfg.Scheduler.Workers,
		QueueSize:     cfg.Scheduler.QueueSize,
		JobTimeout:    cfg.Scheduler.JobTimeout,
		RetryAttempts: cfg.Scheduler.RetryAttempts,
		RetryDelay:    cfg.Scheduler.RetryDelay,
	}, executor, log)
	resolver := vatidapp.NewResolver(identityRepo, validationQueue, stores.Claims, log,
		vatidapp.ResolverConfig{
			Policy: vatid.Policy{
				StaleAfter:      cfg.VAT.StaleAfter,
				EnqueueThrottle: cfg.VAT.EnqueueThrottle,
			},
			Recorder: metrics,
		})

	if cfg.Scheduler.Enabled {
		if err := validationQueue.Start(ctx); err != nil {
			return err
		}
		defer shutdown(log, "validation scheduler", validationQueue.Stop)
		if err := metrics.ObserveQueue(validationQueue); err != nil {
			return err
		}

		if cfg.Scheduler.StaleSweepInterval > 0 {
			sweep := scheduler.NewSweep(scheduler.SweepConfig{
				Interval:  cfg.Scheduler.StaleSweepInterval,
				Batch:     cfg.Scheduler.StaleSweepBatch,
				Immediate: true,
			}, resolver, log)
			if err := sweep.Start(ctx); err != nil {
				return err
			}
			defer shutdown(log, "stale sweep", sweep.Stop)
		}
	} else {
		log.Warn("VAT validation scheduler disabled; identities stay pending until it is enabled")
	}

	// Parties
	sellerService := partyapp.NewSellerService(sellerRepo, resolver, invoiceService, log)
	buyerService := partyapp.NewBuyerService(buyerRepo, resolver, invoiceService, log)
	accountService := partyapp.NewBankAccountService(accountRepo)
	featureGate := billingapp.NewFeatureGate(sellerRepo, planService)

	rates, err := vatprovider.NewStaticRates(nil)
	if err != nil {
		return err
	}

	// Documents
	documents, closeDocuments, err := newDocumentService(ctx, cfg.Documents, invoiceService, log)
	if err != nil {
		return err
	}
	defer closeDocuments()

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engineHTTP := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engineHTTP.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSOrigins

	engineHTTP.Use(middleware.RequestID(), logger.AccessLog(log), middleware.Recovery())
	if traces.Enabled() {
		engineHTTP.Use(middleware.Tracing(cfg.Telemetry.ServiceName)...)
	}
	engineHTTP.Use(
		middleware.HTTPMetrics(meters),
		middleware.Profiling("/health", "/ready"),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	sellerCtx := middleware.SellerContextConfig{
		Validator: func(ctx context.Context, id uuid.UUID) error {
			_, err := sellerRepo.FindByID(ctx, id)
			return err
		},
		Logger: log,
	}
	var sessions *handler.SessionHandler
	if cfg.Auth.JWTSecret != "" {
		tokens := auth.NewTokenService(cfg.Auth)
		sellerCtx.Tokens = tokens.SellerFromToken
		sessions = handler.NewSessionHandler(tokens, sellerService)
	} else {
		log.Warn("Seller tokens disabled; sellers are identified by the X-Seller-ID header")
	}

	guards := router.Guards{
		SellerContext:  middleware.SellerContext(sellerCtx),
		RecheckFeature: middleware.RequireFeature(featureGate, billing.FeatureVatRecheck, log),
	}
	if cfg.HTTP.RateLimitPerSecond > 0 {
		sellerLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitPerSecond, cfg.HTTP.RateLimitBurst)
		publicLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitPerSecond, cfg.HTTP.RateLimitBurst)
		guards.SellerRateLimit = middleware.RateLimitBySeller(sellerLimiter)
		guards.PublicRateLimit = middleware.RateLimitByKey(publicLimiter, func(c *gin.Context) string {
			return c.ClientIP()
		})
		go evictIdleBuckets(ctx, log, sellerLimiter, publicLimiter)
	}
	if cfg.HTTP.AdminTokenHash != "" {
		guards.Admin = middleware.AdminToken(cfg.HTTP.AdminTokenHash)
	} else {
		log.Info("Admin routes disabled; set http.admin_token_hash to enable plan administration")
	}

	checks := map[string]handler.HealthCheck{
		"database": db.PingContext,
	}
	if stores.Shared() {
		checks["redis"] = stores.Ping
	}

	r := router.NewRouter(engineHTTP)
	router.Mount(r, router.Handlers{
		System:      handler.NewSystemHandler(cfg.App.Name, version, checks),
		Seller:      handler.NewSellerHandler(sellerService),
		Buyer:       handler.NewBuyerHandler(buyerService),
		BankAccount: handler.NewBankAccountHandler(accountService),
		Invoice:     handler.NewInvoiceHandler(invoiceService, issuanceService),
		VatIdentity: handler.NewVatIdentityHandler(resolver),
		Rates:       handler.NewRatesHandler(rates),
		Plan:        handler.NewPlanHandler(planService, sellerService),
		Document:    handler.NewDocumentHandler(documents),
		Session:     sessions,
	}, guards)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engineHTTP,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func applyMigrations(db *persistence.Database, log *zap.Logger) error {
	schema, err := migration.New(db.SQL(), migration.FromFS(migrations.FS, "."), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := schema.Close(); err != nil {
			log.Warn("Error closing migration source", zap.Error(err))
		}
	}()
	return schema.Migrate(migration.Latest())
}

// newDocumentService wires the HTML template with the optional PDF printer
// and S3 archive. The returned func releases the browser.
func newDocumentService(ctx context.Context, cfg config.DocumentsConfig, invoices *invoicingapp.InvoiceService, log *zap.Logger) (*invoicingapp.DocumentService, func(), error) {
	tmpl, err := printing.NewInvoiceTemplate()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.PDFEnabled {
		return invoicingapp.NewDocumentService(invoices, tmpl, nil, nil, log), func() {}, nil
	}

	browser := printing.NewBrowser(printing.BrowserConfig{
		RemoteURL: cfg.ChromeURL,
		NoSandbox: cfg.NoSandbox,
		Timeout:   cfg.RenderTimeout,
	}, log)
	closeBrowser := func() { _ = browser.Close() }

	var store invoicingapp.DocumentStore
	switch cfg.Storage {
	case "", "none":
	case "s3":
		archive, err := storage.NewArchive(ctx, cfg, log)
		if err != nil {
			closeBrowser()
			return nil, nil, err
		}
		if err := archive.Prepare(ctx); err != nil {
			closeBrowser()
			return nil, nil, err
		}
		store = archive
		log.Info("Invoice PDFs are archived", zap.String("bucket", archive.Bucket()))
	default:
		closeBrowser()
		return nil, nil, fmt.Errorf("unknown documents.storage %q", cfg.Storage)
	}
	return invoicingapp.NewDocumentService(invoices, tmpl, browser, store, log), closeBrowser, nil
}

// evictIdleBuckets drops idle rate-limit buckets until ctx is done
func evictIdleBuckets(ctx context.Context, log *zap.Logger, limiters ...*middleware.RateLimiter) {
	ticker := time.NewTicker(limiterEvictTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := 0
			for _, l := range limiters {
				removed += l.Evict()
			}
			if removed > 0 {
				log.Debug("Evicted idle rate limit buckets", zap.Int("count", removed))
			}
		}
	}
}

// shutdown stops a component with its own deadline, after the server is gone
func shutdown(log *zap.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.Error("Error stopping "+name, zap.Error(err))
	}
}
