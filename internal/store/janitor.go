package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pageharvest/harvestd/internal/harvest"
)

// Janitor deletes session directories once their TTL elapses. A single
// sweep loop replaces per-save deletion timers: it survives directories
// removed early by the archive packager (removal is existence-checked)
// and can re-adopt leftover directories after a restart.
type Janitor struct {
	mu       sync.Mutex
	expiries map[string]time.Time

	ttl      time.Duration
	interval time.Duration
	clock    harvest.Clock
	logger   *zap.Logger
}

// NewJanitor creates a Janitor sweeping every interval.
func NewJanitor(ttl, interval time.Duration, clock harvest.Clock, logger *zap.Logger) *Janitor {
	return &Janitor{
		expiries: make(map[string]time.Time),
		ttl:      ttl,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Track schedules dir for deletion at now+TTL. The first call for a
// directory wins: later saves into the same session do not extend its
// life, matching the behavior of one deletion timer per directory.
func (j *Janitor) Track(dir string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.expiries[dir]; ok {
		return
	}
	j.expiries[dir] = j.clock.Now().Add(j.ttl)
}

// Adopt scans the work root for directories left over from a previous
// process and schedules them from their modification time. Called once at
// startup so pending deletions survive restarts.
func (j *Janitor) Adopt(workRoot string) error {
	entries, err := os.ReadDir(workRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(workRoot, e.Name())
		if _, ok := j.expiries[dir]; ok {
			continue
		}
		expiry := j.clock.Now().Add(j.ttl)
		if info, err := e.Info(); err == nil {
			expiry = info.ModTime().Add(j.ttl)
		}
		j.expiries[dir] = expiry
		j.logger.Info("adopted leftover session directory",
			zap.String("dir", dir),
			zap.Time("expiry", expiry),
		)
	}
	return nil
}

// Run sweeps on a ticker until the context finishes.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

// sweep removes every directory past its expiry. Directories already
// deleted by the packager are simply forgotten.
func (j *Janitor) sweep() {
	now := j.clock.Now()

	j.mu.Lock()
	var due []string
	for dir, expiry := range j.expiries {
		if !expiry.After(now) {
			due = append(due, dir)
			delete(j.expiries, dir)
		}
	}
	j.mu.Unlock()

	for _, dir := range due {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			j.logger.Error("session directory removal failed",
				zap.String("dir", dir),
				zap.Error(err),
			)
			continue
		}
		j.logger.Info("session directory expired", zap.String("dir", dir))
	}
}

// Pending returns the number of tracked directories.
func (j *Janitor) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.expiries)
}
