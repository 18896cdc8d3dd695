package notifier

import (
	"fmt"
	"strconv"

	"cfguard/internal/config"
)

// FromConfig builds the configured channel. ALERT_MODE=none yields nil.
func FromConfig(cfg config.AlertConfig) (Channel, error) {
	switch cfg.Mode {
	case config.AlertNone, "":
		return nil, nil
	case config.AlertSlack:
		return NewSlack(cfg.SlackWebhook, cfg.SlackBlocks), nil
	case config.AlertEmail:
		return NewEmail(cfg.EmailTo, cfg.EmailFrom, cfg.EmailSubject), nil
	case config.AlertCommand:
		return NewCommand(cfg.Command), nil
	case config.AlertTelegram:
		chatID, err := strconv.ParseInt(cfg.TelegramChat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram chat id: %w", err)
		}
		return NewTelegram(cfg.TelegramToken, chatID), nil
	default:
		return nil, fmt.Errorf("unknown alert mode %q", cfg.Mode)
	}
}
