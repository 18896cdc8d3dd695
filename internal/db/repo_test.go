package db

import (
	"context"
	"testing"
	"time"

	"cfguard/internal/models"
)

func TestModeStateAbsentThenSaved(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, ok, err := repo.LoadModeState(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if ok {
		t.Fatal("expected no mode state on a fresh database")
	}

	first := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	if err := repo.SaveModeState(ctx, models.ModeState{Mode: models.ModeUnderAttack, ChangedAt: first}); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := first.Add(3 * time.Hour)
	if err := repo.SaveModeState(ctx, models.ModeState{Mode: models.ModeMedium, ChangedAt: second}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, ok, err := repo.LoadModeState(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Mode != models.ModeMedium || !got.ChangedAt.Equal(second) {
		t.Fatalf("mode state = %+v", got)
	}
	var rows int
	if err := repo.DB().QueryRow(`SELECT COUNT(*) FROM mode_state`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("mode_state rows = %d, want 1", rows)
	}
}

func TestAlertStateIndependentOfModeState(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	if err := repo.SaveAlertState(ctx, models.AlertState{LastAlertAt: at}); err != nil {
		t.Fatalf("save alert: %v", err)
	}
	if _, ok, _ := repo.LoadModeState(ctx); ok {
		t.Fatal("alert write must not create a mode state")
	}
	got, ok, err := repo.LoadAlertState(ctx)
	if err != nil || !ok {
		t.Fatalf("load alert: ok=%v err=%v", ok, err)
	}
	if !got.LastAlertAt.Equal(at) {
		t.Fatalf("last alert = %v, want %v", got.LastAlertAt, at)
	}
}

func TestCyclesRetention(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	for i, age := range []time.Duration{time.Hour, 20 * 24 * time.Hour, 30 * 24 * time.Hour} {
		c := models.Cycle{ID: string(rune('a' + i)), StartedAt: now.Add(-age), Load: 1, Threshold: 7, Current: models.ModeMedium, Target: models.ModeMedium, Action: models.ActionNoop}
		if err := repo.InsertCycle(ctx, c); err != nil {
			t.Fatalf("insert cycle: %v", err)
		}
	}
	n, err := repo.DeleteOlderThan(ctx, now.AddDate(0, 0, -14))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted = %d, want 2", n)
	}
	left, err := repo.RecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(left) != 1 || left[0].ID != "a" {
		t.Fatalf("remaining cycles = %+v", left)
	}
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	sqldb, err := Open(t.TempDir() + "/state.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := Migrate(sqldb); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return NewRepository(sqldb)
}
