package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// SweepService periodically removes scratch files older than maxAge. Uploads
// release their own scratch files; this only catches files orphaned by a crash.
type SweepService struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	done     chan struct{}
}

// NewSweepService creates a new sweep service.
func NewSweepService(dir string, maxAge, interval time.Duration) *SweepService {
	return &SweepService{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (ss *SweepService) Start(ctx context.Context) {
	slog.Info("scratch sweep started", "dir", ss.dir, "interval", ss.interval, "max_age", ss.maxAge)

	go func() {
		ticker := time.NewTicker(ss.interval)
		defer ticker.Stop()

		ss.Sweep(time.Now())

		for {
			select {
			case <-ticker.C:
				ss.Sweep(time.Now())
			case <-ctx.Done():
				slog.Info("scratch sweep stopping")
				close(ss.done)
				return
			}
		}
	}()
}

// Wait blocks until the sweep service has fully stopped.
func (ss *SweepService) Wait() {
	<-ss.done
}

// Sweep removes every regular file in the scratch directory last modified
// before now-maxAge and returns how many were removed.
func (ss *SweepService) Sweep(now time.Time) int {
	entries, err := os.ReadDir(ss.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to read scratch directory", "dir", ss.dir, "error", err)
		}
		return 0
	}

	cutoff := now.Add(-ss.maxAge)
	var removed, failed int
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		p := filepath.Join(ss.dir, entry.Name())
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Error("failed to remove orphaned scratch file", "path", p, "error", err)
			failed++
			continue
		}
		removed++
	}

	if removed > 0 || failed > 0 {
		slog.Info("scratch sweep complete", "removed", removed, "failed", failed)
	}
	return removed
}
