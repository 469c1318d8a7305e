// Package bootstrap wires all dependencies and starts the application.
// Storage, ledger, payload source and notifications are chosen from
// configuration; everything else is fixed.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/quotagate/adapters/clock"
	"github.com/artpar/quotagate/adapters/email"
	"github.com/artpar/quotagate/adapters/hasher"
	qhttp "github.com/artpar/quotagate/adapters/http"
	"github.com/artpar/quotagate/adapters/idgen"
	"github.com/artpar/quotagate/adapters/memory"
	"github.com/artpar/quotagate/adapters/metrics"
	"github.com/artpar/quotagate/adapters/notify"
	"github.com/artpar/quotagate/adapters/payload"
	"github.com/artpar/quotagate/adapters/random"
	qredis "github.com/artpar/quotagate/adapters/redis"
	"github.com/artpar/quotagate/adapters/sqlite"
	"github.com/artpar/quotagate/app"
	"github.com/artpar/quotagate/config"
	"github.com/artpar/quotagate/domain/plan"
	"github.com/artpar/quotagate/ports"
	"github.com/rs/zerolog"
)

// memoryLedgerShards is the shard count for the in-process ledger.
const memoryLedgerShards = 32

// App represents the running application.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	DB         *sqlite.DB // nil with the memory driver
	Metrics    *metrics.Collector
	Plans      *plan.Registry
	HTTPServer *http.Server

	// Services
	Accounts *app.AccountService
	Stats    *app.StatsService
	Quota    *app.QuotaEnforcer
	Gate     *app.Gate

	// Adapters (for cleanup)
	clock        ports.Clock
	accounts     ports.AccountStore
	ledger       ports.UsageLedger
	audit        ports.AuditStore
	redisLedger  *qredis.Ledger
	dispatcher   *notify.Dispatcher
	fileProducer *payload.FileProducer
	producer     ports.PayloadProducer
	janitor      *LedgerJanitor
}

// Options provides optional overrides for application initialization.
type Options struct {
	// Version is reported by /version.
	Version string

	// Clock overrides the wall clock (tests).
	Clock ports.Clock

	// LogOutput overrides stdout for the logger.
	LogOutput io.Writer
}

// Open connects storage and builds the application services without the
// HTTP surface. CLI commands use this.
func Open(cfg *config.Config, opts Options) (*App, error) {
	logger := setupLogger(cfg.Logging, opts.LogOutput)

	a := &App{
		Config: cfg,
		Logger: logger,
		clock:  opts.Clock,
	}
	if a.clock == nil {
		a.clock = clock.Real{}
	}

	plans, err := cfg.PlanRegistry()
	if err != nil {
		return nil, fmt.Errorf("build plans: %w", err)
	}
	a.Plans = plans

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initStores(); err != nil {
		a.closeStores()
		return nil, err
	}

	if err := a.initNotifier(); err != nil {
		a.closeStores()
		return nil, fmt.Errorf("init notifications: %w", err)
	}

	a.initServices()
	return a, nil
}

// New creates the full application: services, payload producer and HTTP server.
func New(cfg *config.Config, opts Options) (*App, error) {
	a, err := Open(cfg, opts)
	if err != nil {
		return nil, err
	}

	a.Logger.Info().Msg("initializing quotagate")

	if err := a.initPayload(); err != nil {
		a.Close()
		return nil, fmt.Errorf("init payload: %w", err)
	}

	a.initHTTPServer(opts.Version)

	a.janitor = NewLedgerJanitor(a.ledger, a.clock, JanitorConfig{
		Location:      cfg.Quota.Location(),
		RetentionDays: cfg.Ledger.RetentionDays,
		Interval:      cfg.Ledger.PruneInterval,
	}, a.Logger)

	return a, nil
}

func (a *App) initStores() error {
	cfg := a.Config

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		a.DB = db
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		a.accounts = sqlite.NewAccountStore(db)
		a.audit = sqlite.NewAuditStore(db)
		a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database connected")
	case "memory":
		a.accounts = memory.NewAccountStore()
		a.audit = memory.NewAuditStore()
		a.Logger.Warn().Msg("using in-memory storage, data is lost on restart")
	default:
		return fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}

	switch cfg.Ledger.Driver {
	case "sqlite":
		if a.DB == nil {
			return fmt.Errorf("sqlite ledger requires the sqlite database driver")
		}
		a.ledger = sqlite.NewLedger(a.DB, a.clock)
	case "memory":
		a.ledger = memory.NewLedger(memoryLedgerShards)
	case "redis":
		l, err := qredis.NewLedgerFromURL(cfg.Ledger.RedisURL, cfg.Ledger.TTL)
		if err != nil {
			return fmt.Errorf("init redis ledger: %w", err)
		}
		a.redisLedger = l
		a.ledger = l
		a.Logger.Info().Msg("redis ledger connected")
	default:
		return fmt.Errorf("unknown ledger driver: %s", cfg.Ledger.Driver)
	}

	return nil
}

func (a *App) initNotifier() error {
	n := a.Config.Notifications
	if !n.Enabled || n.Provider == "none" {
		return nil
	}

	sender, err := email.NewSender(n.Provider, email.SMTPConfig{
		Host:        n.SMTP.Host,
		Port:        n.SMTP.Port,
		Username:    n.SMTP.Username,
		Password:    n.SMTP.Password,
		From:        n.SMTP.From,
		FromName:    n.SMTP.FromName,
		UseTLS:      n.SMTP.UseTLS,
		UseImplicit: n.SMTP.UseImplicit,
		SkipVerify:  n.SMTP.SkipVerify,
		Timeout:     n.SMTP.Timeout,
		AppName:     n.AppName,
	})
	if err != nil {
		return err
	}

	a.dispatcher = notify.NewDispatcher(sender, notify.Config{
		RatePerMinute: n.RatePerMinute,
		Burst:         n.Burst,
	}, a.Logger, a.Metrics)
	a.Logger.Info().Str("provider", n.Provider).Msg("notifications enabled")
	return nil
}

func (a *App) initServices() {
	cfg := a.Config

	var notifier ports.Notifier
	if a.dispatcher != nil {
		notifier = a.dispatcher
	}
	var m ports.Metrics
	if a.Metrics != nil {
		m = a.Metrics
	}

	auth := app.NewAuthenticator(app.AuthenticatorDeps{
		Accounts: a.accounts,
		Clock:    a.clock,
		Metrics:  m,
		Logger:   a.Logger,
	})

	a.Quota = app.NewQuotaEnforcer(app.QuotaDeps{
		Ledger:   a.ledger,
		Plans:    a.Plans,
		Notifier: notifier,
		Clock:    a.clock,
		Metrics:  m,
		Logger:   a.Logger,
	}, app.QuotaConfig{
		Location:         cfg.Quota.Location(),
		WarningThreshold: cfg.Quota.WarningThreshold,
	})

	a.Gate = app.NewGate(app.GateDeps{
		Authenticator: auth,
		Quota:         a.Quota,
		Audit:         a.audit,
		IDGen:         idgen.Time{},
		Clock:         a.clock,
		Metrics:       m,
		Logger:        a.Logger,
	}, app.GateConfig{})

	a.Accounts = app.NewAccountService(app.AccountDeps{
		Accounts: a.accounts,
		Plans:    a.Plans,
		Random:   random.Real{},
		IDGen:    idgen.UUID{},
		Clock:    a.clock,
		Notifier: notifier,
		Logger:   a.Logger,
	})

	a.Stats = app.NewStatsService(app.StatsDeps{
		Quota: a.Quota,
		Audit: a.audit,
		Plans: a.Plans,
		Clock: a.clock,
	})
}

func (a *App) initPayload() error {
	p := a.Config.Payload

	switch p.Mode {
	case "file":
		fp, err := payload.NewFileProducer(p.Path, a.Logger, a.Metrics)
		if err != nil {
			return err
		}
		a.fileProducer = fp
		a.producer = fp
		if p.Watch {
			if err := fp.Watch(); err != nil {
				return fmt.Errorf("watch %s: %w", p.Path, err)
			}
		}
		a.Logger.Info().Str("path", p.Path).Int("symbols", fp.Symbols()).Bool("watch", p.Watch).Msg("analysis dataset loaded")
	case "upstream":
		up, err := payload.NewUpstreamProducer(payload.UpstreamConfig{
			BaseURL: p.URL,
			Timeout: p.Timeout,
		})
		if err != nil {
			return err
		}
		a.producer = up
		a.Logger.Info().Str("url", p.URL).Msg("analysis upstream configured")
	default:
		return fmt.Errorf("unknown payload mode: %s", p.Mode)
	}
	return nil
}

func (a *App) initHTTPServer(version string) {
	cfg := a.Config

	tokenHashes := make([][]byte, 0, len(cfg.Admin.TokenHashes))
	for _, h := range cfg.Admin.TokenHashes {
		tokenHashes = append(tokenHashes, []byte(h))
	}

	var admin *qhttp.AdminHandler
	if len(tokenHashes) > 0 {
		admin = qhttp.NewAdminHandler(qhttp.AdminDeps{
			Accounts:    a.Accounts,
			Stats:       a.Stats,
			Hasher:      hasher.NewBcrypt(0),
			TokenHashes: tokenHashes,
			Logger:      a.Logger,
		})
	} else {
		a.Logger.Warn().Msg("no admin token hashes configured, admin API disabled")
	}

	gated := qhttp.NewGatedHandler(qhttp.GatedDeps{
		Gate:     a.Gate,
		Analysis: a.producer,
		Stats:    a.Stats,
		Accounts: a.Accounts,
		Metrics:  a.Metrics,
		Logger:   a.Logger,
	})

	public := qhttp.NewPublicHandler(a.Plans, a.healthChecks(), version)

	var m *metrics.Collector
	if cfg.Metrics.Enabled {
		m = a.Metrics
	}

	router := qhttp.NewRouter(qhttp.RouterConfig{
		Gated:       gated,
		Admin:       admin,
		Public:      public,
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,

		RequireHTTPS: cfg.Server.RequireHTTPS,

		Logger: a.Logger,
	})

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func (a *App) healthChecks() map[string]qhttp.HealthCheck {
	checks := make(map[string]qhttp.HealthCheck)
	if a.DB != nil {
		checks["database"] = a.DB.PingContext
	}
	if a.redisLedger != nil {
		checks["ledger"] = a.redisLedger.Ping
	}
	return checks
}

// Run starts the HTTP server and the ledger janitor and blocks until
// SIGINT/SIGTERM or a server error.
func (a *App) Run() error {
	a.janitor.Start()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. In-flight requests finish,
// background counter writes drain and pending notifications are delivered
// before storage is closed.
func (a *App) Shutdown() error {
	timeout := a.Config.Server.ShutdownTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Shutdown HTTP server
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.janitor != nil {
		a.janitor.Close()
	}

	if a.fileProducer != nil {
		if err := a.fileProducer.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("payload watcher close error")
		}
	}

	a.closeServices(ctx)

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// Close releases resources opened by Open. Use Shutdown for apps built by New.
func (a *App) Close() error {
	if a.fileProducer != nil {
		a.fileProducer.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.closeServices(ctx)
	return nil
}

func (a *App) closeServices(ctx context.Context) {
	// Drain unlimited-plan counter writes
	if a.Quota != nil {
		a.Quota.Wait()
	}

	// Flush pending notifications
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("notification dispatcher close error")
		}
	}

	a.closeStores()
}

func (a *App) closeStores() {
	if a.redisLedger != nil {
		if err := a.redisLedger.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("redis close error")
		}
		a.redisLedger = nil
	}

	// Close database
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
		a.DB = nil
	}
}

// Producer returns the configured payload producer (nil before New).
func (a *App) Producer() ports.PayloadProducer {
	return a.producer
}

// Handler returns the HTTP handler (nil before New).
func (a *App) Handler() http.Handler {
	if a.HTTPServer == nil {
		return nil
	}
	return a.HTTPServer.Handler
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
