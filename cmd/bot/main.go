package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cv_builder_bot/internal/api"
	"cv_builder_bot/internal/auth"
	"cv_builder_bot/internal/catalog"
	"cv_builder_bot/internal/config"
	"cv_builder_bot/internal/digest"
	"cv_builder_bot/internal/dispatch"
	"cv_builder_bot/internal/logging"
	"cv_builder_bot/internal/store"
	"cv_builder_bot/internal/telegram"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	apiShutdownTimeout      = 5 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"mongo_db": cfg.MongoDB,
	}).Info("configuration loaded")

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	if err := mongoManager.EnsureBaseIndexes(indexCtx); err != nil {
		cancelIndexes()
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		os.Exit(1)
	}
	cancelIndexes()

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	users := store.NewUserRepository(mongoManager.Users())
	questions := store.NewQuestionRepository(mongoManager.Questions())
	conversations := store.NewConversationLog(mongoManager.Conversations())
	statsProvider := store.NewStatsProvider(mongoManager.Users(), mongoManager.Questions())

	authorizer := auth.NewAuthorizer(cfg.AdminIDs)
	templates := catalog.New(cfg.TemplateDir)

	dispatcher, err := dispatch.New(users, questions, authorizer, templates, logger,
		dispatch.WithConversationLog(conversations),
	)
	if err != nil {
		logger.WithError(err).Error("dispatcher setup error")
		fmt.Fprintf(os.Stderr, "dispatcher setup error: %v\n", err)
		os.Exit(1)
	}

	tgClient, err := telegram.NewClient(cfg, dispatcher, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	apiServer := api.NewServer(cfg.HTTPPort, api.Deps{
		Users:      users,
		Stats:      statsProvider,
		Catalog:    templates,
		Dispatcher: dispatcher,
		Mongo:      mongoManager,
	}, logger)

	go func() {
		if err := apiServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("api server error")
		}
	}()

	var dailyDigest *digest.Digest
	if cfg.DigestTime != "" {
		dailyDigest, err = digest.New(questions, tgClient.Sender(), cfg.AdminIDs, logger)
		if err == nil {
			err = dailyDigest.Schedule(cfg.DigestTime)
		}
		if err != nil {
			logger.WithError(err).Error("digest setup error")
			fmt.Fprintf(os.Stderr, "digest setup error: %v\n", err)
			os.Exit(1)
		}
		dailyDigest.Start()
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	if dailyDigest != nil {
		dailyDigest.Stop()
		logger.WithField("event", "digest_stopped").Info("digest scheduler stopped")
	}

	apiCtx, cancelAPI := context.WithTimeout(context.Background(), apiShutdownTimeout)
	if err := apiServer.Shutdown(apiCtx); err != nil {
		logger.WithError(err).Error("api shutdown error")
	}
	cancelAPI()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
