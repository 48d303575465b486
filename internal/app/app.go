// Package app wires configuration, the credential store and the HTTP
// surface into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/storefront-auth/internal/config"
	"github.com/bissquit/storefront-auth/internal/domain"
	"github.com/bissquit/storefront-auth/internal/identity"
	"github.com/bissquit/storefront-auth/internal/identity/jwt"
	"github.com/bissquit/storefront-auth/internal/identity/password"
	"github.com/bissquit/storefront-auth/internal/notifications"
	"github.com/bissquit/storefront-auth/internal/notifications/email"
	"github.com/bissquit/storefront-auth/internal/pkg/ctxlog"
	"github.com/bissquit/storefront-auth/internal/pkg/httputil"
	"github.com/bissquit/storefront-auth/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config             *config.Config
	logger             *slog.Logger
	store              *credentialStore
	identity           *identity.Service
	server             *http.Server
	metricsServer      *http.Server
	bgCancel           context.CancelFunc
	notificationWorker *notifications.Worker
}

// New creates a new application instance.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	bgCtx, bgCancel := context.WithCancel(context.Background())

	store, err := openStore(ctx, bgCtx, cfg)
	if err != nil {
		bgCancel()
		return nil, err
	}

	app := &App{
		config:   cfg,
		logger:   logger,
		store:    store,
		bgCancel: bgCancel,
	}

	if err := app.setupIdentity(bgCtx); err != nil {
		app.closeResources(context.Background())
		return nil, err
	}

	if err := app.bootstrapAdmin(ctx); err != nil {
		app.closeResources(context.Background())
		return nil, err
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// setupIdentity builds the hasher, token authenticator, optional
// notification pipeline and the identity service.
func (a *App) setupIdentity(bgCtx context.Context) error {
	hasher, err := password.NewHasher(password.Config{
		Cost:          a.config.Password.BcryptCost,
		MaxConcurrent: a.config.Password.MaxConcurrent,
	})
	if err != nil {
		return fmt.Errorf("create password hasher: %w", err)
	}

	authenticator, err := jwt.NewAuthenticator(jwt.Config{
		SecretKey:           a.config.JWT.SecretKey,
		Issuer:              a.config.JWT.Issuer,
		AccessTokenDuration: a.config.JWT.AccessTokenDuration,
	})
	if err != nil {
		return fmt.Errorf("create token authenticator: %w", err)
	}

	var onUserCreated identity.UserCreatedHandler
	if a.config.Notifications.Enabled {
		service, err := a.setupNotifications(bgCtx)
		if err != nil {
			return err
		}
		onUserCreated = service
	}

	slog.Info("identity configured",
		"store", a.store.driver,
		"bcrypt_cost", hasher.Cost(),
		"token_ttl", a.config.JWT.AccessTokenDuration,
		"notifications_enabled", a.config.Notifications.Enabled,
	)

	a.identity = identity.NewService(a.store.repo, hasher, authenticator, onUserCreated, identity.Config{
		StoreTimeout: a.config.Store.Timeout,
	})
	return nil
}

func (a *App) setupNotifications(bgCtx context.Context) (*notifications.Service, error) {
	emailCfg := a.config.Notifications.Email
	sender, err := email.NewSender(email.Config{
		Enabled:      emailCfg.Enabled,
		SMTPHost:     emailCfg.SMTPHost,
		SMTPPort:     emailCfg.SMTPPort,
		SMTPUser:     emailCfg.SMTPUser,
		SMTPPassword: emailCfg.SMTPPassword,
		FromAddress:  emailCfg.FromAddress,
		RequireTLS:   emailCfg.RequireTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create email sender: %w", err)
	}
	if !emailCfg.Enabled {
		slog.Warn("email sender is disabled: welcome emails will not be sent")
	}

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	worker := notifications.NewWorker(workerConfig(a.config.Notifications.Worker), sender)
	worker.Start(bgCtx)
	a.notificationWorker = worker

	return notifications.NewService(worker, renderer, notifications.ServiceConfig{
		StoreName: a.config.Notifications.StoreName,
		BaseURL:   a.config.Notifications.BaseURL,
	}), nil
}

func workerConfig(cfg config.WorkerConfig) notifications.WorkerConfig {
	return notifications.WorkerConfig{
		QueueSize:         cfg.QueueSize,
		NumWorkers:        cfg.NumWorkers,
		MaxAttempts:       cfg.MaxAttempts,
		InitialBackoff:    cfg.InitialBackoff,
		MaxBackoff:        cfg.MaxBackoff,
		BackoffMultiplier: cfg.BackoffMultiplier,
		SendTimeout:       cfg.SendTimeout,
	}
}

func (a *App) bootstrapAdmin(ctx context.Context) error {
	if a.config.Admin.Email == "" {
		return nil
	}
	created, err := a.identity.EnsureAdmin(ctx, a.config.Admin.Email, a.config.Admin.Password)
	if err != nil {
		return fmt.Errorf("bootstrap admin account: %w", err)
	}
	if created {
		slog.Info("bootstrap admin account created")
	}
	return nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown stops accepting requests, drains the notification queue and
// closes the credential store.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	for name, srv := range map[string]*http.Server{"server": a.server, "metrics server": a.metricsServer} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	a.closeResources(ctx)

	return errors.Join(errs...)
}

func (a *App) closeResources(ctx context.Context) {
	if a.notificationWorker != nil {
		a.notificationWorker.Stop(ctx)
	}
	a.bgCancel()
	a.store.close(ctx)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// NotificationWorker returns the notification worker, or nil when
// notifications are disabled.
func (a *App) NotificationWorker() *notifications.Worker {
	return a.notificationWorker
}

func (a *App) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if a.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(a.config.Server.RequestTimeout))
	}

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	limiter := httputil.NewRateLimiter(httputil.RateLimitConfig{
		RequestsPerMinute: a.config.RateLimit.RequestsPerMinute,
		Burst:             a.config.RateLimit.Burst,
	})

	identityHandler := identity.NewHandler(a.identity)
	identityHandler.RegisterPublicRoutes(r, limiter.Middleware)

	r.Group(func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(a.identity))

		identityHandler.RegisterProtectedRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.RequireRole(domain.RoleAdmin))
			identityHandler.RegisterAdminRoutes(r)
		})
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "store", a.store.driver, "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Credential store unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
