// Package main API Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairshot/internal/apiserver/server"
	"pairshot/internal/config"
	"pairshot/internal/mailer"
	"pairshot/internal/provider"
	"pairshot/internal/provider/deepinfra"
	"pairshot/internal/provider/pollinations"
	"pairshot/internal/provider/stability"
	"pairshot/internal/shared/cache/redis"
	"pairshot/internal/shared/objstore"
	"pairshot/internal/shared/storage/mongostore"
	"pairshot/pkg/logging"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换 YAML）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	logger := logging.Default("api-server")

	// 初始化 MongoDB（持久化业务数据）
	store, err := mongostore.NewStore(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Close()
	log.Println("Connected to MongoDB")

	// 初始化 Redis（验证码、刷新令牌）
	tokens, err := redis.NewStore(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer tokens.Close()
	log.Println("Connected to Redis")

	// 初始化 MinIO（生成图像落盘）
	uploader, err := objstore.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}
	if err := uploader.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("Failed to ensure bucket: %v", err)
	}
	log.Println("Connected to MinIO")

	// 邮件发送（无 API Key 时退化为本地空实现）
	var mail mailer.Mailer
	if cfg.Email.APIKey != "" {
		mail = mailer.NewResendMailer(cfg.Email.APIKey, cfg.Email.From, logger)
	} else {
		log.Println("RESEND_API_KEY not set, using noop mailer")
		mail = mailer.NewNoopMailer()
	}

	// 供应商适配器，固定回退顺序：免费的在首位
	providers := []provider.Adapter{
		pollinations.New(cfg.Providers.PollinationsBaseURL),
		stability.New(cfg.Providers.StabilityBaseURL, cfg.Providers.StabilityAPIKey),
		deepinfra.New(cfg.Providers.DeepInfraBaseURL, cfg.Providers.DeepInfraAPIKey),
	}

	h := server.NewHandler(server.Deps{
		Store:     store,
		Tokens:    tokens,
		Mailer:    mail,
		Uploader:  uploader,
		Providers: providers,
		Config:    cfg,
		Logger:    logger,
	})

	// 生成级联是串行慢路径，写超时必须覆盖最坏情况（各供应商超时与退避之和）
	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}
