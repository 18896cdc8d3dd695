package notifier

import (
	"fmt"
	"time"

	"cfguard/internal/models"
)

// Message is what a channel delivers. Text is the plain one-line form;
// channels with rich layouts read the event fields directly.
type Message struct {
	Title string
	Text  string
	Event models.ModeChange
}

func NewMessage(ev models.ModeChange) Message {
	at := ev.At.UTC().Format(time.RFC3339)
	var text string
	switch {
	case ev.Failed:
		text = fmt.Sprintf("%s: FAILED to set security level '%s' -> '%s' (load=%.2f, threshold=%.2f) at %s: %s",
			ev.Host, ev.From, ev.To, ev.Load, ev.Threshold, at, ev.Err)
	case ev.Entering():
		text = fmt.Sprintf("%s: ENTERED UNDER ATTACK (load=%.2f, threshold=%.2f) at %s",
			ev.Host, ev.Load, ev.Threshold, at)
	case ev.From == models.ModeUnderAttack:
		text = fmt.Sprintf("%s: EXITED UNDER ATTACK -> '%s' (load=%.2f, threshold=%.2f) at %s",
			ev.Host, ev.To, ev.Load, ev.Threshold, at)
	default:
		text = fmt.Sprintf("%s: CHANGED security level '%s' -> '%s' (load=%.2f, threshold=%.2f) at %s",
			ev.Host, ev.From, ev.To, ev.Load, ev.Threshold, at)
	}
	return Message{Title: "Cloudflare Guard Alert", Text: text, Event: ev}
}
