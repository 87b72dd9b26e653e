// Package retention periodically purges terminal-folder entries older
// than a configured age (spec §4.3 dead-letter "purge older than N days",
// generalized to Archived/ and Dead_Letter/).
package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/vault"
	"github.com/vaultflow/vaultflow/pkg/workflow"
)

// Config tunes the retention service.
type Config struct {
	ArchivedMaxAge   time.Duration
	DeadLetterMaxAge time.Duration
	Interval         time.Duration
}

// DefaultConfig keeps terminal files for 30 days, dead-letters for 14,
// checking once an hour.
func DefaultConfig() Config {
	return Config{
		ArchivedMaxAge:   30 * 24 * time.Hour,
		DeadLetterMaxAge: 14 * 24 * time.Hour,
		Interval:         time.Hour,
	}
}

// Service is a ticking background purge loop, idempotent and safe to run
// repeatedly — every tick re-evaluates ages from scratch rather than
// tracking a cursor.
type Service struct {
	root   *vault.Root
	dlq    *workflow.DeadLetterQueue
	audit  *audit.Log
	cfg    Config
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService constructs a Service over the given vault root and DLQ.
func NewService(root *vault.Root, dlq *workflow.DeadLetterQueue, auditLog *audit.Log, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{root: root, dlq: dlq, audit: auditLog, cfg: cfg, logger: logger.With("component", "retention")}
}

func (s *Service) Name() string { return "retention" }

func (s *Service) Start(ctx context.Context) error {
	if s.cancel != nil {
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	return nil
}

func (s *Service) HealthCheck(ctx context.Context) error { return nil }

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll()
		}
	}
}

func (s *Service) runAll() {
	if n, err := s.purgeArchived(); err != nil {
		s.logger.Error("retention: purge archived failed", "error", err)
	} else if n > 0 {
		s.logger.Info("retention: purged archived entries", "count", n)
	}

	if s.dlq != nil {
		if n, err := s.dlq.Purge(s.cfg.DeadLetterMaxAge); err != nil {
			s.logger.Error("retention: purge dead-letter failed", "error", err)
		} else if n > 0 {
			s.logger.Info("retention: purged dead-letter entries", "count", n)
		}
	}
}

func (s *Service) purgeArchived() (int, error) {
	dir := s.root.Dir(vault.Archived)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-s.cfg.ArchivedMaxAge)
	purged := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				s.logger.Warn("retention: remove archived file failed", "file", e.Name(), "error", err)
				continue
			}
			purged++
		}
	}
	return purged, nil
}
