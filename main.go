package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/activity"
	"github.com/JassinAlSafe/gamerfie-sub001/api/rest"
	"github.com/JassinAlSafe/gamerfie-sub001/api/sse"
	"github.com/JassinAlSafe/gamerfie-sub001/api/ws"
	"github.com/JassinAlSafe/gamerfie-sub001/audit"
	"github.com/JassinAlSafe/gamerfie-sub001/cache"
	"github.com/JassinAlSafe/gamerfie-sub001/config"
	"github.com/JassinAlSafe/gamerfie-sub001/db"
	"github.com/JassinAlSafe/gamerfie-sub001/feed"
	"github.com/JassinAlSafe/gamerfie-sub001/interaction"
	"github.com/JassinAlSafe/gamerfie-sub001/library"
	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"github.com/JassinAlSafe/gamerfie-sub001/scheduler"
	"github.com/JassinAlSafe/gamerfie-sub001/session"
	"github.com/JassinAlSafe/gamerfie-sub001/social"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.Server.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	cacheCfg := cache.Config{
		RedisAddr:      cfg.Cache.RedisAddr,
		RedisPassword:  cfg.Cache.RedisPassword,
		RedisDB:        cfg.Cache.RedisDB,
		GCInterval:     cfg.Cache.LocalGCInterval,
		LocalPubSubBuf: cfg.Cache.LocalPubSubBuf,
	}
	kv, err := cache.NewCache(cacheCfg)
	if err != nil {
		logger.Fatal("init cache", zap.Error(err))
	}
	pubsub, err := cache.NewPubSub(cacheCfg)
	if err != nil {
		logger.Fatal("init pubsub", zap.Error(err))
	}

	notifier := notify.New(pubsub, logger)

	socialSvc := social.NewService(gormDB, notifier, logger)
	activitySvc := activity.NewService(gormDB, socialSvc, notifier, logger)
	outbox := activity.NewOutbox(activitySvc, cfg.Feed.OutboxRetry, cfg.Feed.OutboxBuf, logger)
	librarySvc := library.NewService(gormDB, activitySvc, outbox, notifier, logger)
	composer := feed.NewComposer(gormDB, socialSvc, activitySvc, cfg.Feed.PageSize, cfg.Feed.MaxPageSize, logger)
	interactionSvc := interaction.NewService(gormDB, notifier, cfg.Feed.MaxCommentLen, logger)

	auditor := audit.New(gormDB, logger)
	sessions := session.NewManager(logger)

	sched := scheduler.New(logger)
	sched.AddTicker("session_count", time.Minute, func() {
		logger.Info("connected viewers", zap.Int("count", sessions.Count()))
	})

	router := rest.NewRouter(rest.Deps{
		Auth:        rest.NewAuthHandler(gormDB, kv, cfg.Security),
		Social:      rest.NewSocialHandler(socialSvc, auditor),
		Activity:    rest.NewActivityHandler(activitySvc, auditor),
		Feed:        rest.NewFeedHandler(composer),
		Interaction: rest.NewInteractionHandler(interactionSvc, auditor),
		Library:     rest.NewLibraryHandler(librarySvc, auditor),
		Cache:       kv,
		Security:    cfg.Security,
		Logger:      logger,
	}, cfg.Server.Debug)

	sseHandler := sse.NewHandler(pubsub, kv, cfg.Security, logger)
	router.GET("/api/sse", sseHandler.Stream)

	wsHandler := ws.NewHandler(sessions, pubsub, kv, cfg.Security, logger)
	router.GET("/api/ws", wsHandler.Serve)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}

	sched.Stop()
	outbox.Stop()
	auditor.Stop(shutdownCtx)
	logger.Info("bye")
}
