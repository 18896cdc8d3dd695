package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cfguard/internal/cloudflare"
	"cfguard/internal/metrics"
	"cfguard/internal/models"
)

type LoadReader interface {
	ReadLoad(ctx context.Context) (float64, error)
}

// ModeController reads and changes the provider's live security level.
type ModeController interface {
	CurrentMode(ctx context.Context) (models.SecurityMode, error)
	SetMode(ctx context.Context, mode models.SecurityMode) error
}

type StateStore interface {
	LoadModeState(ctx context.Context) (models.ModeState, bool, error)
	SaveModeState(ctx context.Context, s models.ModeState) error
}

type Notifier interface {
	Notify(ctx context.Context, ev models.ModeChange)
}

type Journal interface {
	InsertCycle(ctx context.Context, c models.Cycle) error
}

type Settings struct {
	Threshold   float64
	LowLoadMode models.SecurityMode
	Cooldown    time.Duration
	Host        string
}

// StepError names the cycle step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// Engine runs decision cycles. It is not safe for concurrent use; callers
// serialize cycles with the invocation lock.
type Engine struct {
	cfg     Settings
	load    LoadReader
	remote  ModeController
	store   StateStore
	notify  Notifier
	journal Journal
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string
}

// NewEngine wires an engine. notify and journal may be nil.
func NewEngine(cfg Settings, load LoadReader, remote ModeController, store StateStore, notify Notifier, journal Journal, logger zerolog.Logger) *Engine {
	metrics.Threshold.Set(cfg.Threshold)
	return &Engine{
		cfg:     cfg,
		load:    load,
		remote:  remote,
		store:   store,
		notify:  notify,
		journal: journal,
		log:     logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Target returns the mode the load calls for. A load equal to the
// threshold counts as an attack.
func (e *Engine) Target(load float64) models.SecurityMode {
	if load >= e.cfg.Threshold {
		return models.ModeUnderAttack
	}
	return e.cfg.LowLoadMode
}

// Evaluate runs one cycle: sample load, read the remote mode and the local
// record, decide, apply when warranted, persist and alert. A returned
// error means the cycle aborted; persisted state is then unchanged apart
// from a mode change the API already accepted.
func (e *Engine) Evaluate(ctx context.Context) (models.Cycle, error) {
	start := time.Now()
	now := e.now().UTC()
	c := models.Cycle{ID: e.newID(), StartedAt: now, Threshold: e.cfg.Threshold}
	log := e.log.With().Str("cycle_id", c.ID).Logger()

	err := e.evaluate(ctx, log, now, &c)
	if err != nil {
		c.Error = err.Error()
		if c.Action == "" {
			c.Action = models.ActionAborted
		}
		log.Error().
			Err(err).
			Str("action", string(c.Action)).
			Bool("timeout", cloudflare.IsTimeout(err)).
			Msg("cycle aborted")
	}
	metrics.CyclesTotal.WithLabelValues(string(c.Action)).Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	if e.journal != nil {
		if jerr := e.journal.InsertCycle(context.WithoutCancel(ctx), c); jerr != nil {
			log.Warn().Err(jerr).Msg("record cycle")
		}
	}
	return c, err
}

func (e *Engine) evaluate(ctx context.Context, log zerolog.Logger, now time.Time, c *models.Cycle) error {
	load, err := e.load.ReadLoad(ctx)
	if err != nil {
		return &StepError{Step: "read_load", Err: err}
	}
	c.Load = load
	metrics.LoadAverage.Set(load)

	current, err := e.remote.CurrentMode(ctx)
	if err != nil {
		return &StepError{Step: "get_mode", Err: err}
	}
	c.Current = current
	if current == models.ModeUnderAttack {
		metrics.UnderAttack.Set(1)
	} else {
		metrics.UnderAttack.Set(0)
	}

	state, known, err := e.store.LoadModeState(ctx)
	if err != nil {
		return &StepError{Step: "load_state", Err: err}
	}

	target := e.Target(load)
	c.Target = target
	log = log.With().
		Float64("load", load).
		Float64("threshold", e.cfg.Threshold).
		Str("current", string(current)).
		Str("target", string(target)).
		Logger()

	if current == target {
		if known && state.Mode == current {
			c.Action = models.ActionNoop
			log.Debug().Msg("mode already matches load")
			return nil
		}
		if err := e.store.SaveModeState(ctx, models.ModeState{Mode: current, ChangedAt: now}); err != nil {
			return &StepError{Step: "reconcile_state", Err: err}
		}
		c.Action = models.ActionReconciled
		log.Info().Str("recorded", string(state.Mode)).Bool("had_record", known).Msg("local mode record reconciled with remote")
		return nil
	}

	// Only leaving under_attack is held by the cooldown. Any other level,
	// manual or not, is moved to the low-load mode right away.
	if current == models.ModeUnderAttack && known {
		changedAt := state.ChangedAt
		override := state.Mode != current
		if override {
			// under_attack was enabled outside this tool; its cooldown
			// starts when the change is first seen.
			log.Warn().Str("recorded", string(state.Mode)).Msg("manual override detected")
			changedAt = now
		}
		if elapsed := now.Sub(changedAt); elapsed < e.cfg.Cooldown {
			if override {
				if err := e.store.SaveModeState(ctx, models.ModeState{Mode: current, ChangedAt: now}); err != nil {
					return &StepError{Step: "reconcile_state", Err: err}
				}
			}
			c.Action = models.ActionSuppressed
			log.Info().
				Dur("elapsed", elapsed).
				Dur("remaining", e.cfg.Cooldown-elapsed).
				Msg("downgrade held by cooldown")
			return nil
		}
	}

	log.Info().Msg("setting security level")
	if err := e.remote.SetMode(ctx, target); err != nil {
		c.Action = models.ActionFailed
		e.dispatch(ctx, models.ModeChange{
			From: current, To: target, Load: load, Threshold: e.cfg.Threshold,
			At: now, Host: e.cfg.Host, Failed: true, Err: err.Error(),
		})
		return &StepError{Step: "set_mode", Err: err}
	}
	c.Action = models.ActionApplied
	metrics.TransitionsTotal.WithLabelValues(string(target)).Inc()
	if target == models.ModeUnderAttack {
		metrics.UnderAttack.Set(1)
	} else {
		metrics.UnderAttack.Set(0)
	}

	if err := e.store.SaveModeState(ctx, models.ModeState{Mode: target, ChangedAt: now}); err != nil {
		log.Error().Err(err).Msg("security level applied but local record not saved; next cycle reconciles")
	}
	log.Info().Msg("security level changed")
	e.dispatch(ctx, models.ModeChange{
		From: current, To: target, Load: load, Threshold: e.cfg.Threshold,
		At: now, Host: e.cfg.Host,
	})
	return nil
}

func (e *Engine) dispatch(ctx context.Context, ev models.ModeChange) {
	if e.notify == nil {
		return
	}
	e.notify.Notify(ctx, ev)
}
