package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/config"
	"github.com/iliyamo/storefront-api/internal/database"
	"github.com/iliyamo/storefront-api/internal/handler"
	"github.com/iliyamo/storefront-api/internal/logger"
	"github.com/iliyamo/storefront-api/internal/mail"
	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/queue"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/router"
	"github.com/iliyamo/storefront-api/internal/service"
	"github.com/iliyamo/storefront-api/internal/utils"
)

func main() {
	cfg := config.Load()

	log, err := logger.Init(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable, response cache disabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer rdb.Close()
	}
	purge := func(ctx context.Context) error { return middleware.PurgeCache(ctx, cfg.Cache, rdb) }

	mailer, err := mail.NewMailer(queue.NewPublisher(cfg.RabbitURL, log))
	if err != nil {
		log.Fatal("mail templates failed to load", zap.Error(err))
	}
	sender := mail.NewSMTPSender(cfg.SMTPAddr(), cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := queue.NewConsumer(cfg.RabbitURL, sender, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.LogError(log, "mail consumer stopped", err)
		}
	}()

	hasher := utils.NewPasswordHasher(cfg.BcryptCost)
	signer := utils.NewTokenSigner([]byte(cfg.JWTSecret), cfg.AccessTTL())

	accounts := repository.NewAccountRepo(db)
	products := repository.NewProductRepo(db)
	reviews := repository.NewReviewRepo(db)

	links := service.Links{Domain: cfg.Domain, ClientDomain: cfg.ClientDomain}
	authSvc := service.NewAuthService(accounts, hasher, signer, mailer, links, log)
	userSvc := service.NewUserService(accounts, hasher, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, router.Deps{
		Guard:    middleware.NewGuard(signer, accounts, router.Policy(), log),
		Cache:    middleware.NewRedisCache(cfg.Cache, rdb, log),
		DB:       db,
		Auth:     handler.NewAuthHandler(authSvc, log),
		Users:    handler.NewUserHandler(userSvc, log),
		Products: handler.NewProductHandler(products, purge, log),
		Reviews:  handler.NewReviewHandler(reviews, purge, log),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", zap.Error(err))
	}
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		log.Warn("mail consumer did not stop in time")
	}
	log.Info("goodbye")
}
