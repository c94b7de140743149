package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/chitfund-crm/api"
	"github.com/frahmantamala/chitfund-crm/internal"
	"github.com/frahmantamala/chitfund-crm/internal/access"
	"github.com/frahmantamala/chitfund-crm/internal/auth"
	authPostgres "github.com/frahmantamala/chitfund-crm/internal/auth/postgres"
	"github.com/frahmantamala/chitfund-crm/internal/core/events"
	"github.com/frahmantamala/chitfund-crm/internal/core/events/redisrelay"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	rolePostgres "github.com/frahmantamala/chitfund-crm/internal/role/postgres"
	"github.com/frahmantamala/chitfund-crm/internal/transport"
	"github.com/frahmantamala/chitfund-crm/internal/transport/rest"
	"github.com/frahmantamala/chitfund-crm/internal/user"
	userPostgres "github.com/frahmantamala/chitfund-crm/internal/user/postgres"
	"github.com/frahmantamala/chitfund-crm/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Redis    redis.UniversalClient
	Relay    *redisrelay.Relay
	EventBus *events.EventBus
	Registry *prometheus.Registry
	Logger   *slog.Logger

	Resolver *access.Resolver
	Roles    *role.Service
	Users    *user.Service
	Access   *access.Service
	Auth     *auth.Service

	Router        *chi.Mux
	HealthChecker *rest.HealthHandler
}

// Close releases the connections opened by initializeDependencies.
func (d *Dependencies) Close() {
	if d.Relay != nil {
		if err := d.Relay.Close(); err != nil {
			d.Logger.Error("Redis relay close error", "error", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func startHTTPServer() {
	ctx := context.Background()
	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(ctx, deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.Close()
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(ctx context.Context, deps *Dependencies) error {
	// fail fast on a broken embedded document
	if _, err := api.Load(ctx); err != nil {
		return err
	}

	base := transport.NewBaseHandler(deps.Logger)
	handlers := rest.Handlers{
		Health:      deps.HealthChecker,
		Auth:        auth.NewHandler(deps.Auth),
		RBAC:        auth.NewRBACAuthorization(deps.Access, auth.NewPermissionChecker(deps.Config.Navigation), deps.Logger),
		Users:       user.NewHandler(base, deps.Users),
		Roles:       role.NewHandler(base, deps.Roles, deps.Config.Navigation),
		Access:      access.NewHandler(base, deps.Access, deps.EventBus),
		MetricsPath: deps.Config.Observability.Metrics.Path,
		OpenAPI:     api.Spec,
	}
	if deps.Config.Observability.Metrics.Enabled {
		handlers.Metrics = promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})
	}

	rest.RegisterAllRoutes(deps.Router, handlers, deps.Config.Server.AllowedOrigins, deps.Logger)
	return nil
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	deps, err := initCore(ctx, config)
	if err != nil {
		return nil, err
	}

	if config.Events.Redis.Enabled {
		deps.Redis = newRedisClient(config.Events.Redis)
		deps.Relay = redisrelay.New(deps.Redis, deps.EventBus, config.Events.Redis.Channel, deps.Logger)
		if err := deps.Relay.Start(ctx); err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to start redis relay: %w", err)
		}
	}

	deps.Router = chi.NewRouter()
	deps.HealthChecker = rest.NewHealthHandler(deps.DB.DB, deps.Redis)
	return deps, nil
}

// initCore opens the database and builds the domain services shared by every
// command.
func initCore(ctx context.Context, config *internal.Config) (*Dependencies, error) {
	log := logger.L()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	resolver := access.NewResolver(config.Access.DefaultPermission)
	guard, err := newGuard(config)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to build route guard: %w", err)
	}

	eventBus := events.NewEventBus(log)
	roleService := role.NewService(
		rolePostgres.NewRoleRepository(gdb),
		rolePostgres.NewUsageRepository(db),
		eventBus,
		log,
	)
	userService := user.NewService(
		userPostgres.NewUserRepository(gdb),
		roleService,
		eventBus,
		log,
		config.Security.BCryptCost,
	)
	accessService := access.NewService(
		userService,
		roleService,
		resolver,
		guard,
		config.Navigation,
		access.NewMetrics(registry),
		log,
	)
	authService := auth.NewService(
		authPostgres.NewRepository(gdb),
		auth.NewJWTTokenGenerator(
			config.Security.AccessTokenSecret,
			config.Security.RefreshTokenSecret,
			config.Security.AccessTokenDuration,
			config.Security.RefreshTokenDuration,
		),
		config.Security.BCryptCost,
		log,
	)

	return &Dependencies{
		Config:   config,
		DB:       db,
		Gorm:     gdb,
		EventBus: eventBus,
		Registry: registry,
		Logger:   log,
		Resolver: resolver,
		Roles:    roleService,
		Users:    userService,
		Access:   accessService,
		Auth:     authService,
	}, nil
}

func guardRoutes(routes []internal.RouteConfig) []access.Route {
	out := make([]access.Route, 0, len(routes))
	for _, r := range routes {
		out = append(out, access.Route{Path: r.Path, Entity: r.Entity, Public: r.Public})
	}
	return out
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx connection pool with gorm.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}

func newRedisClient(cfg internal.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
