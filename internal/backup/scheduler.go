// Package backup exports periodic global snapshots and hands them to sinks
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"shortlink-bot/internal/metrics"
	"shortlink-bot/internal/service"
)

// Exporter produces snapshots; nil ownerID means every owner
type Exporter interface {
	ExportSnapshot(ctx context.Context, ownerID *int64) (*service.Snapshot, error)
}

// Sink stores or delivers one snapshot
type Sink interface {
	Name() string
	Put(ctx context.Context, snap *service.Snapshot) error
}

// Scheduler runs a backup every interval until stopped.
// A failed run is logged; the next tick tries again.
type Scheduler struct {
	exporter Exporter
	sinks    []Sink
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

func NewScheduler(exporter Exporter, interval time.Duration, logger *slog.Logger, sinks ...Sink) *Scheduler {
	return &Scheduler{
		exporter: exporter,
		sinks:    sinks,
		interval: interval,
		logger:   logger.With("component", "backup"),
	}
}

// Start launches the loop. Calling it twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	s.logger.Info("backup scheduler started", "interval", s.interval.String(), "sinks", len(s.sinks))
	go s.loop(ctx, s.stopChan, s.done)
}

// Stop ends the loop and waits for an in-flight run to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("backup scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("backup run failed", "error", err)
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce exports a global snapshot and offers it to every sink.
// One failing sink does not keep the others from running.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	defer func() { metrics.RecordSnapshot("backup", err) }()

	snap, err := s.exporter.ExportSnapshot(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to export snapshot: %w", err)
	}

	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Put(ctx, snap); err != nil {
			s.logger.Warn("backup sink failed", "sink", sink.Name(), "file", snap.Filename, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		s.logger.Info("backup stored", "sink", sink.Name(), "file", snap.Filename, "urls", snap.Records)
	}
	return errors.Join(errs...)
}
