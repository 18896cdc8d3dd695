package collector

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"

	"cfguard/internal/models"
)

// LoadReader samples the host 5 minute load average.
type LoadReader struct {
	avg func(ctx context.Context) (*load.AvgStat, error)
}

func NewLoadReader() *LoadReader { return &LoadReader{avg: load.AvgWithContext} }

func (r *LoadReader) ReadLoad(ctx context.Context) (float64, error) {
	st, err := r.avg(ctx)
	if err != nil {
		return 0, &models.IOError{Op: "read load average", Err: err}
	}
	if st == nil || math.IsNaN(st.Load5) || st.Load5 < 0 {
		return 0, &models.IOError{Op: "read load average", Err: fmt.Errorf("invalid sample %+v", st)}
	}
	return st.Load5, nil
}

// Hostname names the host in alert messages.
func Hostname(ctx context.Context) string {
	if info, err := host.InfoWithContext(ctx); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown-host"
}
