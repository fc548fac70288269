package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ivanoskov/ibadah_bot/internal/bot"
	"github.com/ivanoskov/ibadah_bot/internal/config"
	"github.com/ivanoskov/ibadah_bot/internal/repository"
	"github.com/ivanoskov/ibadah_bot/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.SetupLogging(cfg)

	repo, err := repository.NewRESTRepository(cfg.APIURL, &http.Client{Timeout: cfg.HTTPTimeout})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repository")
	}

	newStore := func() *service.IbadahStore {
		return service.NewIbadahStore(repo, service.WithNoticeTTL(cfg.NoticeTTL))
	}

	b, err := bot.NewTelegramBot(cfg.TelegramToken, cfg.BotDebug, newStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("api", cfg.APIURL).Msg("bot started")
	if err := b.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("bot stopped")
	}
	log.Info().Msg("bot stopped")
}
