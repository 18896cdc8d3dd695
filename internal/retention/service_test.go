package retention

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakePruner struct {
	cutoff time.Time
	err    error
}

func (f *fakePruner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestRunUsesRetentionWindow(t *testing.T) {
	p := &fakePruner{}
	s := NewService(p, 7, zerolog.New(io.Discard))
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.Run(context.Background())
	if want := now.AddDate(0, 0, -7); !p.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", p.cutoff, want)
	}
}

func TestDefaultRetentionAndErrors(t *testing.T) {
	p := &fakePruner{err: errors.New("locked")}
	s := NewService(p, 0, zerolog.New(io.Discard))
	if s.retentionDays != 14 {
		t.Fatalf("retention days = %d, want 14", s.retentionDays)
	}
	s.Run(context.Background())
}
