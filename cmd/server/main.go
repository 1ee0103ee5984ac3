package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dkoval/authgate/internal/config"
	"github.com/dkoval/authgate/internal/database"
	"github.com/dkoval/authgate/internal/federation"
	"github.com/dkoval/authgate/internal/handler"
	"github.com/dkoval/authgate/internal/logger"
	"github.com/dkoval/authgate/internal/middleware"
	"github.com/dkoval/authgate/internal/queue"
	"github.com/dkoval/authgate/internal/repository"
	"github.com/dkoval/authgate/internal/router"
	"github.com/dkoval/authgate/internal/service"
	"github.com/dkoval/authgate/internal/token"
	"github.com/dkoval/authgate/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("prod")
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	migCtx, cancelMig := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migCtx, db); err != nil {
		cancelMig()
		log.Fatal().Err(err).Msg("migrate")
	}
	cancelMig()

	codec := token.NewCodec(cfg.JWTSecret, "authgate")
	fed := federation.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)

	identities := repository.NewIdentityRepo(db)
	tokens := repository.NewTokenRepo(db)
	sessions := repository.NewSessionRepo(db, identities, tokens)

	svc := usecase.NewAuthService(usecase.Config{
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
		BcryptCost: cfg.BcryptCost,
	}, log, identities, tokens, sessions, fed, codec)

	events := service.NewPublisher(cfg.RabbitURL, log)
	h := handler.NewAuthHandler(svc, events, log)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unreachable, rate limiting disabled")
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAuth(e, h, codec, limiter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background loops owned by main: expired-ledger sweep and the audit
	// consumer. Both stop with the server.
	go sweepLedger(ctx, tokens, cfg.LedgerSweepInterval, log)
	go queue.StartAuthConsumer(ctx, cfg.RabbitURL, log)

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

// sweepLedger periodically deletes expired refresh-token rows. Lazy expiry
// checks keep correctness either way; the sweep just bounds table growth.
func sweepLedger(ctx context.Context, tokens *repository.TokenRepo, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := tokens.DeleteExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("ledger sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("ledger sweep")
			}
		}
	}
}
