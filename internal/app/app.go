package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"cfguard/internal/cloudflare"
	"cfguard/internal/collector"
	"cfguard/internal/config"
	"cfguard/internal/db"
	"cfguard/internal/guard"
	"cfguard/internal/lock"
	"cfguard/internal/logger"
	"cfguard/internal/metrics"
	"cfguard/internal/models"
	"cfguard/internal/notifier"
	"cfguard/internal/retention"
	"cfguard/internal/web"
)

type App struct {
	cfg config.Config
	log zerolog.Logger

	sqldb     *sql.DB
	repo      *db.Repository
	engine    *guard.Engine
	retention *retention.Service

	httpSrv *http.Server
}

func New(cfg config.Config, log zerolog.Logger) (*App, error) {
	sqldb, err := db.Open(cfg.StateDB)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(sqldb); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	repo := db.NewRepository(sqldb)

	ch, err := notifier.FromConfig(cfg.Alert)
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	cf := cloudflare.NewClient(cfg.APIBase, cfg.ZoneID, cfg.APIToken, cfg.APITimeout)
	dispatcher := notifier.NewDispatcher(ch, repo, cfg.Alert.Cooldown, cfg.Alert.OnFailure, logger.WithComponent(log, "alerts"))
	settings := guard.Settings{
		Threshold:   cfg.Threshold,
		LowLoadMode: cfg.LowLoadMode,
		Cooldown:    cfg.Cooldown,
		Host:        collector.Hostname(context.Background()),
	}

	a := &App{
		cfg:       cfg,
		log:       log,
		sqldb:     sqldb,
		repo:      repo,
		engine:    guard.NewEngine(settings, collector.NewLoadReader(), cf, repo, dispatcher, repo, logger.WithComponent(log, "guard")),
		retention: retention.NewService(repo, cfg.RetentionDays, logger.WithComponent(log, "retention")),
	}
	if cfg.HTTPAddr != "" {
		srv := web.NewServer(repo, cf, logger.WithComponent(log, "web"))
		a.httpSrv = &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Routes(), ReadHeaderTimeout: 5 * time.Second}
	}
	return a, nil
}

// RunOnce performs one locked cycle. Lock contention is not an error: the
// other invocation is doing the work.
func (a *App) RunOnce(ctx context.Context) (models.Cycle, error) {
	l, err := lock.TryAcquire(a.cfg.LockFile)
	if errors.Is(err, lock.ErrLocked) {
		metrics.LockContention.Inc()
		a.log.Info().Str("lock_file", a.cfg.LockFile).Msg("another invocation holds the lock, skipping cycle")
		return models.Cycle{}, nil
	}
	if err != nil {
		a.log.Error().Err(err).Str("step", "acquire_lock").Str("lock_file", a.cfg.LockFile).Msg("cycle aborted")
		return models.Cycle{}, &models.IOError{Op: "acquire lock", Err: err}
	}
	defer func() {
		if err := l.Release(); err != nil {
			a.log.Warn().Err(err).Msg("release lock")
		}
	}()
	return a.engine.Evaluate(ctx)
}

// Run cycles every interval until ctx ends. Cycle errors are logged by the
// engine and do not stop the loop.
func (a *App) Run(ctx context.Context, interval time.Duration) error {
	if a.httpSrv != nil {
		go func() {
			a.log.Info().Str("addr", a.cfg.HTTPAddr).Msg("status server listening")
			if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error().Err(err).Msg("status server failed")
			}
		}()
	}

	cycleTicker := time.NewTicker(interval)
	retentionTicker := time.NewTicker(6 * time.Hour)
	defer cycleTicker.Stop()
	defer retentionTicker.Stop()

	// Immediate first run
	_, _ = a.RunOnce(ctx)
	a.retention.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			if a.httpSrv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = a.httpSrv.Shutdown(shutdownCtx)
				cancel()
			}
			return nil
		case <-cycleTicker.C:
			_, _ = a.RunOnce(ctx)
		case <-retentionTicker.C:
			a.retention.Run(ctx)
		}
	}
}

func (a *App) Close() error {
	return a.sqldb.Close()
}
