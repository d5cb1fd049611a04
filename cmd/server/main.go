package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"bboard/internal/cache"
	"bboard/internal/config"
	"bboard/internal/db"
	"bboard/internal/handler"
	"bboard/internal/model"
	"bboard/internal/repository"
	"bboard/internal/router"
	"bboard/internal/service"
	"bboard/internal/storage"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Optional .env for local development; production reads the process env.
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, reading from environment")
	}

	cfg := config.Load()

	e := echo.New()
	e.Use(middleware.RequestID())

	gormDB, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database init")
	}

	if err := gormDB.AutoMigrate(&model.Post{}); err != nil {
		log.Fatal().Err(err).Msg("auto-migrate")
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	files := storage.NewStore(cfg.MediaRoot)

	postRepo := repository.NewPostRepository(gormDB)
	postService := service.NewPostService(postRepo, files, cacheClient, log)
	postHandler := handler.NewPostHandler(postService)

	router.Register(e, postHandler)

	addr := ":" + cfg.ServerPort
	log.Info().Str("addr", addr).Str("media_root", cfg.MediaRoot).Msg("starting server")
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server start")
	}
}
