package bot

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/ivanoskov/ibadah_bot/internal/charts"
	"github.com/ivanoskov/ibadah_bot/internal/service"
)

// Sender is the part of the Telegram client the bot writes through.
// *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Poller receives updates by long polling.
type Poller interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// StoreFactory creates the store backing one chat.
type StoreFactory func() *service.IbadahStore

// Bot presents the ibadah list over Telegram. Each chat gets its own store.
type Bot struct {
	api      Sender
	newStore StoreFactory
	charts   *charts.ChartGenerator

	// mu guards the maps only; updates of one chat are serialized by
	// that chat's entry in locks
	mu       sync.Mutex
	sessions map[int64]*session
	locks    map[int64]*sync.Mutex
}

// NewBot creates a bot writing through api. newStore is called once per chat.
func NewBot(api Sender, newStore StoreFactory) *Bot {
	return &Bot{
		api:      api,
		newStore: newStore,
		charts:   charts.NewChartGenerator(),
		sessions: make(map[int64]*session),
		locks:    make(map[int64]*sync.Mutex),
	}
}

// NewTelegramBot connects to the Bot API with token.
func NewTelegramBot(token string, debug bool, newStore StoreFactory) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	log.Info().Str("username", api.Self.UserName).Msg("[bot] authorized")
	return NewBot(api, newStore), nil
}

// Start runs long polling until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	poller, ok := b.api.(Poller)
	if !ok {
		return errors.New("telegram client does not support long polling")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := poller.GetUpdatesChan(u)
	defer b.Close()

	for {
		select {
		case <-ctx.Done():
			poller.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.HandleUpdate(ctx, update); err != nil {
				log.Error().Err(err).Int("update_id", update.UpdateID).Msg("[bot] failed to handle update")
			}
		}
	}
}

// HandleWebhook handles one webhook payload.
func (b *Bot) HandleWebhook(ctx context.Context, body []byte) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return err
	}
	return b.HandleUpdate(ctx, update)
}

// Close releases every chat session.
func (b *Bot) Close() {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[int64]*session)
	b.mu.Unlock()

	for _, s := range sessions {
		s.store.Close()
	}
}

// send delivers c and logs failures; a failed message never stops a handler.
func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		log.Error().Err(err).Msg("[bot] send failed")
	}
}
