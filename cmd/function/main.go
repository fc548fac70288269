package main

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ivanoskov/ibadah_bot/internal/bot"
	"github.com/ivanoskov/ibadah_bot/internal/config"
	"github.com/ivanoskov/ibadah_bot/internal/repository"
	"github.com/ivanoskov/ibadah_bot/internal/service"
)

// Request is the incoming API Gateway event.
type Request struct {
	Body string `json:"body"`
}

// Response is returned to API Gateway.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// Handler processes one Telegram webhook call. Every invocation starts
// with fresh sessions, so the list is fetched again for each chat.
func Handler(ctx context.Context, request Request) (*Response, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return errorResponse(err)
	}
	config.SetupLogging(cfg)

	repo, err := repository.NewRESTRepository(cfg.APIURL, &http.Client{Timeout: cfg.HTTPTimeout})
	if err != nil {
		return errorResponse(err)
	}

	b, err := bot.NewTelegramBot(cfg.TelegramToken, cfg.BotDebug, func() *service.IbadahStore {
		return service.NewIbadahStore(repo, service.WithNoticeTTL(cfg.NoticeTTL))
	})
	if err != nil {
		return errorResponse(err)
	}
	defer b.Close()

	if err := b.HandleWebhook(ctx, []byte(request.Body)); err != nil {
		return errorResponse(err)
	}

	return &Response{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}, nil
}

func errorResponse(err error) (*Response, error) {
	log.Error().Err(err).Msg("webhook failed")
	return &Response{
		StatusCode: http.StatusInternalServerError,
		Body:       err.Error(),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}, nil
}

func main() {
	// entry point for local builds; the platform calls Handler
}
