// Command findit-server starts the FindIt HTTP API.
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

	"go.uber.org/zap"

	"github.com/and161185/findit/internal/auth"
	"github.com/and161185/findit/internal/config"
	"github.com/and161185/findit/internal/limiter"
	"github.com/and161185/findit/internal/migrate"
	"github.com/and161185/findit/internal/notify"
	"github.com/and161185/findit/internal/ratelimit"
	"github.com/and161185/findit/internal/repository/postgres"
	"github.com/and161185/findit/internal/server/httpserver"
	"github.com/and161185/findit/internal/service"
	"github.com/and161185/findit/internal/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves HTTP until SIGINT/SIGTERM.
// The process exits only after run has released every resource it opened.
func main() {
	cfgPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, *cfgPath)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "findit-server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.Addr),
	)

	if err := migrate.Up(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	db, err := postgres.New(ctx, postgres.PoolConfig{
		DSN:             cfg.Database.DSN(),
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	itemRepo := postgres.NewItemRepo(db)
	claimRepo := postgres.NewClaimRepo(db)
	messageRepo := postgres.NewMessageRepo(db)
	convRepo := postgres.NewConversationRepo(db)

	loginLim := limiter.NewPG(db.Pool, limiter.Policy{
		Window:   cfg.Auth.LoginWindow,
		MaxFails: cfg.Auth.LoginMaxFails,
		BlockFor: cfg.Auth.LoginBlockFor,
	})

	var reqLim *ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		rdb, err := ratelimit.NewRedis(ctx, ratelimit.Options{
			Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
		})
		if err != nil {
			// requests are served unthrottled rather than refusing to start
			logger.Warn("redis unavailable, request rate limit disabled", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			reqLim = ratelimit.New(rdb, cfg.Redis.RequestsPerMinute)
		}
	}

	// Outbound email
	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.Mail.ResendAPIKey != "" {
		sender = notify.NewResendSender(cfg.Mail.ResendAPIKey, cfg.Mail.From)
	} else {
		logger.Warn("mail.resend_api_key not set, emails are logged only")
	}
	mailer := notify.NewDispatcher(sender, logger, cfg.Mail.Workers, cfg.Mail.QueueSize, cfg.Mail.SendTimeout)

	photos, err := storage.NewLocal(cfg.Server.UploadDir)
	if err != nil {
		_ = mailer.Close(context.Background())
		return fmt.Errorf("upload dir: %w", err)
	}

	issuer := auth.NewIssuer([]byte(cfg.Auth.JWTKey), cfg.Auth.AccessTTL)
	google := auth.NewIDTokenVerifier(cfg.Auth.GoogleClientID)
	users := service.NewUserService(userRepo, itemRepo, claimRepo)

	// Services
	srv := httpserver.New(httpserver.Deps{
		Auth:          service.NewAuthService(userRepo, issuer, google, loginLim, mailer, cfg.Auth.ResetCodeTTL),
		Users:         users,
		Items:         service.NewItemService(itemRepo, claimRepo, photos, mailer),
		Claims:        service.NewClaimService(claimRepo, messageRepo, itemRepo, userRepo, mailer),
		Conversations: service.NewConversationService(convRepo, messageRepo, itemRepo, logger),
		Admin:         service.NewAdminService(itemRepo),
		Tokens:        issuer,
		Accounts:      users,
		DB:            db,
		Limiter:       reqLim,
		Log:           logger,
	}, httpserver.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		UploadDir:      photos.Dir(),
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})

	hs := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: cfg.Server.RequestTimeout,
	}
	return serve(ctx, hs, mailer.Close, cfg.Server.ShutdownTimeout, logger)
}

// serve runs hs until ctx ends or the listener fails. Either way the server is
// shut down and queued emails are drained before returning; the listener error,
// if any, is returned.
func serve(ctx context.Context, hs *http.Server, drain func(context.Context) error,
	shutdownTimeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", hs.Addr))
		errCh <- hs.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// drain queued emails after the last request has finished
	if err := drain(shutdownCtx); err != nil {
		logger.Warn("mail queue not drained", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return serveErr
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	if c.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
