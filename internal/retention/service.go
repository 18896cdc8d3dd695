package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service prunes the cycle and notification journals.
type Service struct {
	repo          Pruner
	retentionDays int
	log           zerolog.Logger
	now           func() time.Time
}

func NewService(repo Pruner, days int, logger zerolog.Logger) *Service {
	if days <= 0 {
		days = 14
	}
	return &Service{repo: repo, retentionDays: days, log: logger, now: time.Now}
}

func (s *Service) Run(ctx context.Context) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("retention cleanup failed")
		return
	}
	s.log.Info().Time("cutoff", cutoff).Int64("cycles_deleted", n).Msg("retention cleanup completed")
}
