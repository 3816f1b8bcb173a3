package app

import (
	"context"
	"fmt"
	"os"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/enersystems/es-inventory-hub/internal/clients/redis"
	"github.com/enersystems/es-inventory-hub/internal/data/db"
	"github.com/enersystems/es-inventory-hub/internal/data/repos"
	types "github.com/enersystems/es-inventory-hub/internal/domain"
	httpx "github.com/enersystems/es-inventory-hub/internal/http"
	httpH "github.com/enersystems/es-inventory-hub/internal/http/handlers"
	httpMW "github.com/enersystems/es-inventory-hub/internal/http/middleware"
	"github.com/enersystems/es-inventory-hub/internal/observability"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
	"github.com/enersystems/es-inventory-hub/internal/recon"
	"github.com/enersystems/es-inventory-hub/internal/services"
	"github.com/enersystems/es-inventory-hub/internal/temporalx"
	"github.com/enersystems/es-inventory-hub/internal/temporalx/temporalworker"
)

type Repos struct {
	Vendors   repos.VendorRepo
	Snapshots repos.DeviceSnapshotRepo
	Ledger    repos.ExceptionRepo
}

type Services struct {
	Exceptions services.ExceptionService
	Snapshots  services.SnapshotService
	Reconcile  services.ReconcileService
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Policy   recon.Policy
	Metrics  *observability.Metrics
	Repos    Repos
	Services Services
	Server   *httpx.Server

	temporal     temporalsdkclient.Client
	worker       *temporalworker.Runner
	cache        redis.SummaryCache
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)
	metrics := observability.Init(log)

	policy := recon.DefaultPolicy()
	if cfg.PolicyPath != "" {
		policy, err = recon.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("load reconcile policy: %w", err)
		}
	}

	dbService, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(dbService.DB()); err != nil {
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}
	theDB := dbService.DB()

	var cache redis.SummaryCache
	if os.Getenv("REDIS_ADDR") != "" {
		cache, err = redis.NewSummaryCache(log)
		if err != nil {
			// The cache is an accelerator; the board endpoints work without it.
			log.Warn("Redis summary cache unavailable; continuing without it", "error", err)
			cache = nil
		}
	}

	reposet := Repos{
		Vendors:   repos.NewVendorRepo(theDB, log),
		Snapshots: repos.NewDeviceSnapshotRepo(theDB, log),
		Ledger:    repos.NewExceptionRepo(theDB, log),
	}

	if err := seedVendors(theDB, reposet.Vendors); err != nil {
		log.Sync()
		return nil, fmt.Errorf("seed vendors: %w", err)
	}

	excSvc := services.NewExceptionService(theDB, log, policy, reposet.Ledger, cache)
	snapSvc := services.NewSnapshotService(theDB, log, reposet.Vendors, reposet.Snapshots)
	reconSvc := services.NewReconcileService(theDB, log, policy, reposet.Vendors, reposet.Snapshots, reposet.Ledger, excSvc, snapSvc)
	serviceset := Services{
		Exceptions: excSvc,
		Snapshots:  snapSvc,
		Reconcile:  reconSvc,
	}

	var auth *httpMW.AuthMiddleware
	if cfg.JWTSecret != "" {
		auth = httpMW.NewAuthMiddleware(log, cfg.JWTSecret)
	} else {
		log.Warn("JWT_SECRET_KEY not set; API authentication disabled")
	}

	server := httpx.NewServer(httpx.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		AuthMiddleware:   auth,
		HealthHandler:    httpH.NewHealthHandler(theDB),
		ExceptionHandler: httpH.NewExceptionHandler(log, excSvc),
		SnapshotHandler:  httpH.NewSnapshotHandler(log, snapSvc),
		RunHandler:       httpH.NewRunHandler(log, reconSvc),
	})

	a := &App{
		Log:      log,
		DB:       theDB,
		Cfg:      cfg,
		Policy:   policy,
		Metrics:  metrics,
		Repos:    reposet,
		Services: serviceset,
		Server:   server,
		cache:    cache,
	}

	tc, err := temporalx.NewClient(log)
	if err != nil {
		log.Warn("Temporal unavailable; scheduled runs disabled", "error", err)
	} else if tc != nil {
		a.temporal = tc
		runner, err := temporalworker.NewRunner(log, tc, reconSvc)
		if err != nil {
			log.Warn("Temporal worker init failed", "error", err)
		} else {
			a.worker = runner
		}
	}

	return a, nil
}

// seedVendors registers both reconciled vendors up front so collectors and
// runs never race on first insert.
func seedVendors(theDB *gorm.DB, vendors repos.VendorRepo) error {
	ctx := context.Background()
	for _, name := range []string{types.VendorNinja, types.VendorThreatLocker} {
		if _, err := vendors.EnsureByName(ctx, theDB, name); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.otelShutdown = observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: "es-inventory-hub",
		Environment: a.Cfg.Environment,
		Version:     a.Cfg.Version,
	})

	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		a.Metrics.StartRedisCollector(ctx, a.Log, os.Getenv("REDIS_ADDR"))
		a.Metrics.StartLedgerCollector(ctx, a.Log, a.DB)
	}

	if a.worker != nil {
		if err := a.worker.Start(ctx); err != nil {
			a.Log.Warn("Temporal worker failed to start", "error", err)
		}
	}
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(a.Cfg.HTTPAddr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.otelShutdown != nil {
		shutdownCtx, cancel := context.WithCancel(context.Background())
		_ = a.otelShutdown(shutdownCtx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
