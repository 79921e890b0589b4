package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Promitpolok/ai-image-telegram-bot/app"
	appconfig "github.com/Promitpolok/ai-image-telegram-bot/app/config"
	"github.com/Promitpolok/ai-image-telegram-bot/core/logger"
	coretelegram "github.com/Promitpolok/ai-image-telegram-bot/core/telegram"
)

func main() {
	// A .env file is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := coretelegram.RunTelegram(ctx, application.TelegramRunOptions()); err != nil {
		log.Fatalf("bot stopped with error: %v", err)
	}
}
