// Package main 管理动作异步处理进程入口
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pairshot/internal/actionworker"
	"pairshot/internal/apiserver/auth"
	"pairshot/internal/config"
	"pairshot/internal/mailer"
	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage/mongostore"
	"pairshot/pkg/logging"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting Action Worker... [env=%s]", cfg.Env)

	logger := logging.Default("action-worker")

	store, err := mongostore.NewStore(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Close()
	log.Println("Connected to MongoDB")

	var mail mailer.Mailer
	if cfg.Email.APIKey != "" {
		mail = mailer.NewResendMailer(cfg.Email.APIKey, cfg.Email.From, logger)
	} else {
		log.Println("RESEND_API_KEY not set, using noop mailer")
		mail = mailer.NewNoopMailer()
	}

	// 密码重置：生成临时密码、写入哈希、邮件送达明文临时码
	resetPass := func(ctx context.Context, account *model.Account) error {
		temp := newTempPassword()
		hash, err := auth.HashPassword(temp)
		if err != nil {
			return err
		}
		if err := store.UpdateAccountPassword(ctx, account.ID, hash); err != nil {
			return err
		}
		return mail.SendVerificationCode(ctx, account.Email, temp)
	}

	w := actionworker.New(store, actionworker.Config{
		PollInterval:      cfg.Worker.PollInterval,
		BatchSize:         cfg.Worker.BatchSize,
		AllowedInitiators: cfg.Worker.AllowedInitiators,
	}, resetPass, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	log.Printf("Action Worker polling every %s", cfg.Worker.PollInterval)
	w.Start(ctx)

	log.Println("Worker stopped")
}

// newTempPassword 生成 16 位十六进制临时密码
func newTempPassword() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
