package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"campushub/composer/internal/app"
	"campushub/composer/internal/config"
	"campushub/composer/internal/draft"
	"campushub/composer/internal/upload"
)

func main() {
	cfg := config.Load()

	var storage draft.Storage
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for draft storage")
		redisStorage, err := draft.NewRedisStorage(cfg.RedisURL, cfg.DraftTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStorage.Close()
		storage = redisStorage
	} else if strings.TrimSpace(cfg.DraftPath) != "" {
		log.Printf("Using SQLite for draft storage at %s", cfg.DraftPath)
		if err := os.MkdirAll(filepath.Dir(cfg.DraftPath), 0o755); err != nil {
			log.Fatalf("failed to create draft dir: %v", err)
		}
		sqliteStorage, err := draft.NewSQLiteStorage(cfg.DraftPath)
		if err != nil {
			log.Fatalf("sqlite open failed: %v", err)
		}
		defer sqliteStorage.Close()
		storage = sqliteStorage
	} else {
		log.Printf("Using in-memory draft storage, drafts are lost on restart")
		storage = draft.NewMemoryStorage()
	}

	var uploader upload.Uploader
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		log.Printf("Uploading images to MinIO at %s", cfg.MinioEndpoint)
		minioUploader, err := upload.NewMinioUploader(upload.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			PublicURL: cfg.MinioPublicURL,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		uploader = minioUploader
	} else {
		log.Printf("Uploading images through the forum API at %s", cfg.ForumBaseURL)
		uploader = upload.NewForumUploader(cfg.ForumBaseURL, cfg.ForumToken)
	}

	service := app.New(cfg, uploader, storage)
	defer service.Close()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Composer API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
