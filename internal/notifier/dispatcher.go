package notifier

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cfguard/internal/metrics"
	"cfguard/internal/models"
)

// Channel delivers one alert message.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// attemptLimiter is implemented by channels whose delivery has side effects
// that must not be repeated.
type attemptLimiter interface {
	MaxAttempts() int
}

type AlertStore interface {
	LoadAlertState(ctx context.Context) (models.AlertState, bool, error)
	SaveAlertState(ctx context.Context, s models.AlertState) error
	InsertNotificationEvent(ctx context.Context, ev models.NotificationEvent) error
}

// Dispatcher sends mode change alerts through at most one channel, gated
// by its own cooldown. It never returns errors to the caller.
type Dispatcher struct {
	channel   Channel
	store     AlertStore
	cooldown  time.Duration
	onFailure bool
	log       zerolog.Logger
	now       func() time.Time
	sleep     func(context.Context, time.Duration)
	attempts  int
}

// NewDispatcher returns a dispatcher; a nil channel disables alerting.
func NewDispatcher(ch Channel, store AlertStore, cooldown time.Duration, onFailure bool, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		channel:   ch,
		store:     store,
		cooldown:  cooldown,
		onFailure: onFailure,
		log:       logger,
		now:       time.Now,
		sleep:     sleepCtx,
		attempts:  3,
	}
}

func (d *Dispatcher) Enabled() bool { return d != nil && d.channel != nil }

// Notify delivers an alert for ev unless the alert cooldown is active.
// Only delivered transition alerts move the cooldown forward; failure
// alerts leave the alert state untouched.
func (d *Dispatcher) Notify(ctx context.Context, ev models.ModeChange) {
	if !d.Enabled() {
		return
	}
	if ev.Failed && !d.onFailure {
		return
	}
	name := d.channel.Name()
	now := d.now().UTC()

	last, ok, err := d.store.LoadAlertState(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("alert state unreadable, sending anyway")
	} else if ok && now.Sub(last.LastAlertAt) < d.cooldown {
		d.log.Info().
			Str("channel", name).
			Time("last_alert_at", last.LastAlertAt).
			Dur("cooldown", d.cooldown).
			Msg("alert suppressed by cooldown")
		metrics.AlertsTotal.WithLabelValues(name, "suppressed").Inc()
		d.journal(ctx, models.NotificationEvent{Channel: name, Status: "suppressed"})
		return
	}

	msg := NewMessage(ev)
	limit := d.attempts
	if l, ok := d.channel.(attemptLimiter); ok && l.MaxAttempts() > 0 && l.MaxAttempts() < limit {
		limit = l.MaxAttempts()
	}
	attempts := 0
	for attempts < limit {
		attempts++
		err = d.channel.Send(ctx, msg)
		if err == nil {
			break
		}
		if ctx.Err() != nil || attempts == limit {
			break
		}
		d.sleep(ctx, time.Duration(attempts)*300*time.Millisecond)
	}
	if err != nil {
		d.log.Warn().Err(err).Str("channel", name).Int("attempts", attempts).Msg("alert delivery failed")
		metrics.AlertsTotal.WithLabelValues(name, "failed").Inc()
		d.journal(ctx, models.NotificationEvent{Channel: name, Status: "failed", Attempts: attempts, LastError: err.Error()})
		return
	}

	sent := d.now().UTC()
	metrics.AlertsTotal.WithLabelValues(name, "sent").Inc()
	d.journal(ctx, models.NotificationEvent{Channel: name, Status: "sent", Attempts: attempts, SentAt: &sent})
	d.log.Info().Str("channel", name).Str("message", msg.Text).Msg("alert sent")
	if ev.Failed {
		return
	}
	if err := d.store.SaveAlertState(ctx, models.AlertState{LastAlertAt: now}); err != nil {
		d.log.Error().Err(err).Msg("save alert state")
	}
}

func (d *Dispatcher) journal(ctx context.Context, ev models.NotificationEvent) {
	if err := d.store.InsertNotificationEvent(ctx, ev); err != nil {
		d.log.Warn().Err(err).Msg("record notification event")
	}
}

func sleepCtx(ctx context.Context, dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
