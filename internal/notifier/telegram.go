package notifier

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the part of the Telegram client used for alerts.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	Token  string
	ChatID int64
	HTTP   *http.Client

	mu  sync.Mutex
	bot BotAPI
}

func NewTelegram(token string, chatID int64) *Telegram {
	return &Telegram{
		Token:  token,
		ChatID: chatID,
		HTTP:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Telegram) Name() string { return "telegram" }

// client connects lazily; NewBotAPI calls getMe, which a run that never
// alerts should not pay for.
func (t *Telegram) client() (BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	if t.Token == "" || t.ChatID == 0 {
		return nil, fmt.Errorf("telegram not configured")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.Token, tgbotapi.APIEndpoint, t.HTTP)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	t.bot = bot
	return bot, nil
}

func (t *Telegram) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := t.client()
	if err != nil {
		return err
	}
	m := tgbotapi.NewMessage(t.ChatID, msg.Text)
	m.DisableWebPagePreview = true
	if _, err := bot.Send(m); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
