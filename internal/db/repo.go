package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cfguard/internal/models"
)

// Repository persists guard state. Every write is a single statement so a
// record is either fully replaced or left as it was.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) LoadModeState(ctx context.Context) (models.ModeState, bool, error) {
	var s models.ModeState
	var mode string
	err := r.db.QueryRowContext(ctx, `SELECT mode,changed_at FROM mode_state WHERE id=1`).Scan(&mode, &s.ChangedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ModeState{}, false, nil
	}
	if err != nil {
		return models.ModeState{}, false, &models.IOError{Op: "load mode state", Err: err}
	}
	s.Mode = models.SecurityMode(mode)
	s.ChangedAt = s.ChangedAt.UTC()
	return s, true, nil
}

func (r *Repository) SaveModeState(ctx context.Context, s models.ModeState) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO mode_state (id,mode,changed_at) VALUES (1,?,?)
		ON CONFLICT(id) DO UPDATE SET mode=excluded.mode,changed_at=excluded.changed_at`,
		string(s.Mode), s.ChangedAt.UTC())
	if err != nil {
		return &models.IOError{Op: "save mode state", Err: err}
	}
	return nil
}

func (r *Repository) LoadAlertState(ctx context.Context) (models.AlertState, bool, error) {
	var s models.AlertState
	err := r.db.QueryRowContext(ctx, `SELECT last_alert_at FROM alert_state WHERE id=1`).Scan(&s.LastAlertAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AlertState{}, false, nil
	}
	if err != nil {
		return models.AlertState{}, false, &models.IOError{Op: "load alert state", Err: err}
	}
	s.LastAlertAt = s.LastAlertAt.UTC()
	return s, true, nil
}

func (r *Repository) SaveAlertState(ctx context.Context, s models.AlertState) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO alert_state (id,last_alert_at) VALUES (1,?)
		ON CONFLICT(id) DO UPDATE SET last_alert_at=excluded.last_alert_at`, s.LastAlertAt.UTC())
	if err != nil {
		return &models.IOError{Op: "save alert state", Err: err}
	}
	return nil
}

func (r *Repository) InsertCycle(ctx context.Context, c models.Cycle) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO cycles (id,started_at,load,threshold,current_mode,target_mode,action,error)
		VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.StartedAt.UTC(), c.Load, c.Threshold, string(c.Current), string(c.Target), string(c.Action), c.Error)
	return err
}

func (r *Repository) RecentCycles(ctx context.Context, limit int) ([]models.Cycle, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id,started_at,load,threshold,current_mode,target_mode,action,error
		FROM cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.Cycle, 0, limit)
	for rows.Next() {
		var c models.Cycle
		var cur, target, action string
		if err := rows.Scan(&c.ID, &c.StartedAt, &c.Load, &c.Threshold, &cur, &target, &action, &c.Error); err != nil {
			return nil, err
		}
		c.Current, c.Target, c.Action = models.SecurityMode(cur), models.SecurityMode(target), models.Action(action)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) InsertNotificationEvent(ctx context.Context, ev models.NotificationEvent) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO notification_events (ts,channel,status,attempts,last_error,sent_ts_nullable) VALUES (?,?,?,?,?,?)`,
		time.Now().UTC(), ev.Channel, ev.Status, ev.Attempts, ev.LastError, ev.SentAt)
	return err
}

func (r *Repository) NotificationCount(ctx context.Context, status string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notification_events WHERE status=?`, status).Scan(&n)
	return n, err
}

func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notification_events WHERE ts < ?`, cutoff.UTC()); err != nil {
		return n, err
	}
	_, _ = r.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	_, _ = r.db.ExecContext(ctx, `PRAGMA optimize`)
	return n, nil
}
