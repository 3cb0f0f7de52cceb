// Package server wires configuration, storage, services and the HTTP API
// together and runs them until the process is told to stop.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/auth"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/config"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/httpapi"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/mail"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/metrics"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/ratelimit"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/repomanager"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const (
	purgeInterval  = time.Hour
	purgeRetention = 24 * time.Hour
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	repos         repomanager.RepositoryManager
	redis         *redis.Client
	resetService  *services.PasswordResetService
	handler       http.Handler
	purgeInterval time.Duration
}

// NewApp connects to storage, applies migrations and builds the services and
// the HTTP handler.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	gin.SetMode(gin.ReleaseMode)
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	repos, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mx := metrics.New(reg)

	app := &App{config: c, logger: logger, repos: repos, purgeInterval: purgeInterval}

	var limiter ratelimit.Limiter = ratelimit.NopLimiter{}
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			// the limiter fails open, so a missing Redis only disables it
			logger.Warn(ctx, "redis unreachable, attempt limiting inactive", "addr", c.RedisAddr, "error", err)
		}
		limiter = ratelimit.NewRedisLimiter(app.redis, c.RateLimitAttempts, c.RateLimitWindow)
	}

	hasher := auth.NewBcryptHasher(c.BcryptCost)
	tokens := auth.NewTokenIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration, c.TokenLeeway)
	mailer := mail.New(c, logger)

	us := services.NewUserService(repos, c, hasher, tokens, limiter, mx, logger)
	rs := services.NewPasswordResetService(repos, c, hasher, mailer, limiter, mx, logger)
	ps := services.NewPredictionService(c, nil, logger)

	app.resetService = rs
	app.handler = httpapi.NewAPI(us, rs, ps, tokens, repos.Ping, mx, logger).Routes()

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.handler, app.config.ShutdownTimeout, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// startHousekeeping purges long-expired reset codes until ctx is done.
func (app *App) startHousekeeping(ctx context.Context) {
	ticker := time.NewTicker(app.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.purge(ctx)
		}
	}
}

func (app *App) purge(ctx context.Context) {
	n, err := app.resetService.PurgeExpired(ctx, purgeRetention)
	if err != nil {
		logging.LogError(ctx, app.logger, "purge expired reset codes", err)
		return
	}
	if n > 0 {
		app.logger.Info(ctx, "purged expired reset codes", "count", n)
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// releases storage connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHousekeeping(ctx)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "closing redis", "error", err)
		}
	}
	if err := app.repos.Close(); err != nil {
		app.logger.Warn(ctx, "closing database", "error", err)
	}
}
