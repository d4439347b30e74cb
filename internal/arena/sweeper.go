package arena

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically expires stale queue entries into bot matches and
// resolves them. It implements the server lifecycle Service interface.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper that scans every interval.
//
// Precondition: svc and logger are non-nil; interval > 0.
func NewSweeper(svc *Service, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		svc:      svc,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
//
// Postcondition: returns nil after Stop.
func (s *Sweeper) Start() error {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("queue sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ticker.C:
			resolved := s.svc.SweepQueue(context.Background())
			if len(resolved) > 0 {
				s.logger.Info("swept stale queue entries", zap.Int("resolved", len(resolved)))
			}
		case <-s.stop:
			return nil
		}
	}
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
