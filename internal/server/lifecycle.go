// Package server runs the arena's long-lived components as one unit:
// services start in registration order, block until a signal or failure,
// and stop in reverse order.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component. Start blocks for the component's
// whole lifetime; Stop asks it to wind down and return from Start.
type Service interface {
	Start() error
	Stop()
}

// FuncService wraps a start/stop function pair as a Service, for
// components too small to deserve their own type.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

func (f *FuncService) Start() error { return f.StartFn() }

func (f *FuncService) Stop() { f.StopFn() }

// Lifecycle owns a set of named services. Run starts them all, waits for
// SIGINT/SIGTERM, a service failure, or context cancellation, then stops
// everything in reverse registration order.
type Lifecycle struct {
	logger  *zap.Logger
	entries []lifecycleEntry
	mu      sync.Mutex
}

type lifecycleEntry struct {
	name string
	svc  Service
}

// NewLifecycle creates an empty Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a service under a name used in lifecycle logs. Start order
// follows Add order; stop order is the reverse.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, lifecycleEntry{name: name, svc: svc})
}

// Run starts every registered service and blocks until the first of: a
// termination signal, a service returning an error, or ctx cancellation.
//
// Postcondition: every service has been stopped when Run returns.
func (l *Lifecycle) Run(ctx context.Context) error {
	launched := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failures := make(chan error, len(l.entries))
	for _, e := range l.entries {
		e := e
		go func() {
			l.logger.Info("service starting", zap.String("service", e.name))
			began := time.Now()
			if err := e.svc.Start(); err != nil {
				l.logger.Error("service exited with error",
					zap.String("service", e.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(began)))
				failures <- fmt.Errorf("service %s: %w", e.name, err)
				cancel()
			}
		}()
	}

	l.logger.Info("arena up",
		zap.Int("services", len(l.entries)),
		zap.Duration("startup", time.Since(launched)))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		l.logger.Info("signal received, winding down", zap.String("signal", sig.String()))
	case err := <-failures:
		l.logger.Error("service failure, winding down", zap.Error(err))
	case <-ctx.Done():
		l.logger.Info("context cancelled, winding down")
	}

	l.stopAll()

	l.logger.Info("arena down", zap.Duration("uptime", time.Since(launched)))
	return nil
}

// stopAll stops services newest-first so dependents go before dependencies.
func (l *Lifecycle) stopAll() {
	began := time.Now()
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		stopStart := time.Now()
		e.svc.Stop()
		l.logger.Info("service stopped",
			zap.String("service", e.name),
			zap.Duration("elapsed", time.Since(stopStart)))
	}
	l.logger.Info("all services stopped", zap.Duration("elapsed", time.Since(began)))
}
