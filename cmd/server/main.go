package main

import (
	"os"

	"go.uber.org/zap"

	"inboxintel/internal/handler"
	"inboxintel/internal/httpserver"
	"inboxintel/internal/repository"
	"inboxintel/internal/service/analyze"
	"inboxintel/internal/service/auth"
	"inboxintel/internal/service/mail"
	"inboxintel/internal/service/syncer"
	"inboxintel/pkg/config"
	"inboxintel/pkg/db"
	"inboxintel/pkg/logger"
	"inboxintel/pkg/redisclient"
)

func main() {
	// Load config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/base.yaml"
	}

	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("Config load failed", zap.Error(err))
	}
	if cfg.Gemini.APIKey == "" {
		log.Warn("Gemini API key is not configured; /sync will fail until it is set")
	}

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// Init Repositories
	taskRepo := repository.NewTaskRepository(dbConn, log)

	// Init Services
	sessionStore := auth.NewRedisSessionStore(rdb)
	authService := auth.NewService(cfg.Google, cfg.Session.Secret, sessionStore, log)
	mailClient := mail.NewClient(log)
	analyzer := analyze.NewGeminiAnalyzer(cfg.Gemini, log)
	syncService := syncer.NewService(mailClient, analyzer, taskRepo, log)

	// Init Handlers
	authHandler := handler.NewAuthHandler(authService, log)
	syncHandler := handler.NewSyncHandler(syncService, cfg.Gemini.APIKey, log)
	taskHandler := handler.NewTaskHandler(taskRepo, log)

	// Router
	router := httpserver.NewRouter(authHandler, syncHandler, taskHandler, authService, dbConn)

	// Start server
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatal("server start failed", zap.Error(err))
	}
}
