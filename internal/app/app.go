package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/audit"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/auth"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/config"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/featureflag"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/grading"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/handlers"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/metrics"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/middleware"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/persistence"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/ratelimit"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/store"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/telemetry"
)

const closeTimeout = 5 * time.Second

// loginLimiterIdle is how long an idle client bucket is kept.
const loginLimiterIdle = 10 * time.Minute

const superAdminRole = "super_admin"

// Builder wires application dependencies.
type Builder struct {
	cfg            *config.Config
	version        string
	logger         logger.Logger
	fiberApp       *fiber.App
	engine         persistence.Engine
	users          *store.UserStore
	students       *store.StudentStore
	revocations    *auth.RevocationList
	jwtService     *auth.JWTService
	registry       *featureflag.Registry
	auditManager   *audit.Manager
	auditor        *audit.Auditor
	loginLimiter   *ratelimit.Store
	tracerProvider *telemetry.TracerProvider
	probes         map[string]handlers.Probe
	closers        []func()
}

// NewBuilder creates a new application builder.
func NewBuilder(cfg *config.Config, version string) *Builder {
	return &Builder{cfg: cfg, version: version, probes: map[string]handlers.Probe{}}
}

// WithLogger overrides the logger built from configuration.
func (b *Builder) WithLogger(log logger.Logger) *Builder {
	b.logger = log
	return b
}

// Build assembles the application components.
func (b *Builder) Build(ctx context.Context) (*App, error) {
	b.initLogger()
	b.recordStartupMetrics()
	b.initFiber()
	b.initTracing(ctx)

	steps := []func(context.Context) error{
		b.initPersistence,
		b.initStores,
		b.initAudit,
		b.initFeatures,
		b.bootstrapAdmin,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			b.cleanupOnError()
			return nil, err
		}
	}

	b.initMiddleware()
	b.initRoutes()

	return &App{
		cfg:      b.cfg,
		logger:   b.logger,
		fiberApp: b.fiberApp,
		closers:  b.closers,
	}, nil
}

func (b *Builder) initLogger() {
	if b.logger == nil {
		b.logger = logger.NewFromConfig(b.cfg.Log.Level, b.cfg.Log.Format)
	}
	logger.SetDefault(b.logger)
}

func (b *Builder) recordStartupMetrics() {
	metrics.BuildInfo.WithLabelValues(b.version, runtime.Version()).Set(1)

	b.logger.Info("Starting school ERP API",
		logger.String("version", b.version),
		logger.String("address", b.cfg.Address()),
		logger.String("log_level", b.cfg.Log.Level),
		logger.String("persistence_type", b.cfg.Persistence.Type),
		logger.String("audit_sink", b.cfg.Audit.Sink),
		logger.String("features_source", b.cfg.Features.Source),
	)
}

func (b *Builder) initFiber() {
	b.fiberApp = fiber.New(fiber.Config{
		AppName:               "school-erp " + b.version,
		ErrorHandler:          middleware.ErrorHandler,
		DisableStartupMessage: true,
	})
}

func (b *Builder) initTracing(ctx context.Context) {
	provider, err := telemetry.InitTracing(ctx, b.cfg.Tracing)
	if err != nil {
		b.logger.Error("Failed to initialize tracing", logger.Error(err))
		return
	}

	if b.cfg.Tracing.Enabled {
		b.logger.Info("OpenTelemetry tracing initialized",
			logger.String("endpoint", b.cfg.Tracing.Endpoint),
			logger.String("service_name", b.cfg.Tracing.ServiceName),
		)
	}

	b.addCloser(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			b.logger.Error("Failed to shutdown tracer provider", logger.Error(err))
		}
	})

	b.tracerProvider = provider
}

func (b *Builder) initPersistence(context.Context) error {
	engine, err := persistence.NewEngine(persistence.Config{
		Type:       b.cfg.Persistence.Type,
		DataDir:    b.cfg.Persistence.DataDir,
		SyncWrites: b.cfg.Persistence.SyncWrites,
	}, b.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize persistence engine: %w", err)
	}

	b.engine = engine
	b.probes["persistence"] = handlers.EngineProbe(engine)

	b.addCloser(func() {
		if err := engine.Close(); err != nil {
			b.logger.Error("Failed to close persistence engine", logger.Error(err))
		}
	})

	return nil
}

func (b *Builder) initStores(context.Context) error {
	b.users = store.NewUserStore(b.engine)
	b.students = store.NewStudentStore(b.engine)
	b.revocations = auth.NewRevocationList(b.engine)
	b.jwtService = auth.NewJWTService(
		b.cfg.Auth.JWTSecret,
		b.cfg.Auth.JWTExpiry,
		b.cfg.Auth.RefreshExpiry,
		b.cfg.Auth.Issuer,
	)
	return nil
}

// initAudit builds the audit manager over the configured sink. The
// manager is shut down before the persistence engine so buffered records
// still reach the badger sink.
func (b *Builder) initAudit(ctx context.Context) error {
	var writer audit.Writer

	if b.cfg.Audit.Enabled {
		switch b.cfg.Audit.Sink {
		case "badger":
			writer = audit.NewStoreWriter(b.engine)
		case "postgres":
			sqlWriter, err := b.openAuditDatabase(ctx)
			if err != nil {
				return err
			}
			writer = sqlWriter
		}
	}

	manager, err := audit.NewManager(audit.Config{
		Enabled:       b.cfg.Audit.Enabled,
		Sink:          b.cfg.Audit.Sink,
		FilePath:      b.cfg.Audit.FilePath,
		BufferSize:    b.cfg.Audit.BufferSize,
		FlushInterval: b.cfg.Audit.FlushInterval,
		DropPolicy:    audit.DropPolicy(b.cfg.Audit.DropPolicy),
	}, b.logger, writer)
	if err != nil {
		return fmt.Errorf("failed to initialize audit manager: %w", err)
	}

	b.auditManager = manager
	b.auditor = audit.NewAuditor(manager, b.logger)

	b.addCloser(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			b.logger.Error("Failed to shutdown audit manager", logger.Error(err))
		}
	})

	if manager.Enabled() {
		b.logger.Info("Audit logging enabled",
			logger.String("sink", b.cfg.Audit.Sink),
			logger.Int("buffer_size", b.cfg.Audit.BufferSize),
			logger.String("drop_policy", b.cfg.Audit.DropPolicy),
		)
	}
	return nil
}

func (b *Builder) openAuditDatabase(ctx context.Context) (*audit.SQLWriter, error) {
	db, err := sql.Open("pgx", b.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(b.cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(b.cfg.Database.MaxIdleConns)

	writer, err := audit.NewSQLWriter(db, b.cfg.Audit.Table)
	if err != nil {
		db.Close()
		return nil, err
	}

	schemaCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := writer.EnsureSchema(schemaCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare audit table: %w", err)
	}

	b.probes["audit_database"] = func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	b.addCloser(func() {
		if err := db.Close(); err != nil {
			b.logger.Error("Failed to close audit database", logger.Error(err))
		}
	})
	return writer, nil
}

func (b *Builder) initFeatures(context.Context) error {
	var source featureflag.Source
	switch b.cfg.Features.Source {
	case "static":
		source = featureflag.StaticSource{}
	case "http":
		source = featureflag.NewHTTPSource(b.cfg.Features.URL, b.cfg.Features.Timeout)
	case "", "store":
		source = &featureflag.StoreSource{Engine: b.engine}
	default:
		return fmt.Errorf("unsupported features source: %s", b.cfg.Features.Source)
	}
	b.registry = featureflag.NewRegistry(source, b.logger)
	return nil
}

// bootstrapAdmin creates the configured super administrator on a store
// that does not have it yet.
func (b *Builder) bootstrapAdmin(ctx context.Context) error {
	bc := b.cfg.Bootstrap
	if bc.Email == "" {
		return nil
	}

	existing, err := b.users.GetByEmail(bc.TenantID, bc.Email)
	if err == nil {
		b.logger.Debug("Bootstrap administrator already present",
			logger.String("tenant_id", bc.TenantID),
			logger.String("user_id", existing.ID))
		return nil
	}
	if !store.IsNotFound(err) {
		return fmt.Errorf("failed to look up bootstrap administrator: %w", err)
	}

	hash, err := auth.HashPassword(bc.Password)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}
	created, err := b.users.Create(store.User{
		TenantID:     bc.TenantID,
		Email:        bc.Email,
		Name:         "Administrator",
		Roles:        []string{superAdminRole},
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to create bootstrap administrator: %w", err)
	}

	changes, _ := audit.Diff(nil, created.Public())
	b.auditor.Log(audit.SetContext(ctx, audit.Context{TenantID: bc.TenantID}), audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: "user",
		EntityID:   created.ID,
		Changes:    changes,
	})
	b.logger.Info("Bootstrap administrator created",
		logger.String("tenant_id", bc.TenantID),
		logger.String("user_id", created.ID))
	return nil
}

func (b *Builder) initMiddleware() {
	b.fiberApp.Use(middleware.RequestLogging(b.logger))
	b.fiberApp.Use(middleware.MetricsMiddleware())

	if b.cfg.Tracing.Enabled {
		b.fiberApp.Use(middleware.TracingMiddleware(b.cfg.Tracing.ServiceName))
	}

	b.fiberApp.Use(middleware.AuditContext())
	b.fiberApp.Use(middleware.JWTAuth(b.jwtService, b.revocations, b.cfg.Auth.PublicPaths))
	b.fiberApp.Use(middleware.AuditMiddleware(b.auditor))
}

func (b *Builder) initRoutes() {
	routes := handlers.Routes{
		Auth:     handlers.NewAuthHandler(b.jwtService, b.users, b.revocations),
		Features: handlers.NewFeatureHandler(b.registry),
		Users:    handlers.NewUserHandler(b.users),
		Students: handlers.NewStudentHandler(b.students),
		Exams:    handlers.NewExamHandler(grading.DefaultScale),
		Health:   handlers.NewHealthHandler(b.version, b.probes),
		Registry: b.registry,
	}

	if b.cfg.RateLimit.Enabled {
		b.loginLimiter = ratelimit.NewStore(b.cfg.RateLimit.RequestsPerSec, b.cfg.RateLimit.Burst, loginLimiterIdle)
		routes.LoginLimit = middleware.RateLimit(b.loginLimiter, "login")
		b.addCloser(b.loginLimiter.Close)

		b.logger.Info("Login rate limiting enabled",
			logger.String("requests_per_sec", fmt.Sprintf("%.1f", b.cfg.RateLimit.RequestsPerSec)),
			logger.Int("burst", b.cfg.RateLimit.Burst),
		)
	}

	b.fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	routes.Register(b.fiberApp)
}

func (b *Builder) addCloser(closer func()) {
	b.closers = append(b.closers, closer)
}

func (b *Builder) cleanupOnError() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// App is a configured application ready to run.
type App struct {
	cfg      *config.Config
	logger   logger.Logger
	fiberApp *fiber.App
	closers  []func()
}

// Handler exposes the HTTP application, mainly for tests.
func (a *App) Handler() *fiber.App {
	return a.fiberApp
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("Server starting", logger.String("address", a.cfg.Address()))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.fiberApp.Listen(a.cfg.Address())
	}()

	select {
	case err := <-serverErr:
		a.Close()
		if err != nil {
			a.logger.Error("Failed to start server", logger.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")
	if err := a.Shutdown(); err != nil {
		a.logger.Error("Server forced to shutdown", logger.Error(err))
	}

	if err := <-serverErr; err != nil {
		return err
	}

	a.logger.Info("Server exited gracefully")
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// releases resources in reverse order of creation.
func (a *App) Shutdown() error {
	err := a.fiberApp.ShutdownWithTimeout(a.cfg.Server.ShutdownTimeout)
	a.Close()
	return err
}

// Close releases resources without touching the listener. It is safe to
// call more than once.
func (a *App) Close() {
	closers := a.closers
	a.closers = nil
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
