package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"optin-backfill/internal/command"
	"optin-backfill/internal/config"
	"optin-backfill/internal/logging"
	"optin-backfill/internal/metrics"
	"optin-backfill/internal/notify"
	"optin-backfill/internal/repository"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := repository.NewDB(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		log.Error().Err(err).Msg("db")
		return 1
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	attrRepo := repository.NewUserAttributeRepository(db)

	notifier := buildNotifier(cfg, log)

	registry := command.NewRegistry(os.Stdout)
	registry.Register(command.NewPopulateMarketingOptIn(userRepo, attrRepo, os.Stdout, log, metrics.NewBackfill(), notifier))

	err = registry.Dispatch(ctx, os.Args[1:])
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, command.ErrInvalidOption), errors.Is(err, command.ErrUnknownCommand):
		fmt.Fprintln(os.Stderr, err)
		return 2
	default:
		log.Error().Err(err).Msg("command failed")
		return 1
	}
}

func buildNotifier(cfg config.Config, log *zerolog.Logger) notify.Notifier {
	if !cfg.NotifyEnabled() {
		return notify.NewLog(log)
	}
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn().Err(err).Msg("telegram notifier unavailable, reporting to log")
		return notify.NewLog(log)
	}
	return tg
}
