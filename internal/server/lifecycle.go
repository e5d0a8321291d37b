// Package server coordinates the long-running pieces of the game server
// process: orderly startup, signal handling, and reverse-order shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component managed by the Lifecycle.
type Service interface {
	// Start runs the service until the context is cancelled or the service
	// fails. It blocks for the lifetime of the service.
	Start(ctx context.Context) error
	// Stop asks the service to wind down. It must be safe to call after the
	// start context is already cancelled.
	Stop()
}

// ServiceFunc adapts a pair of functions into a Service. StopFn may be nil
// when cancellation of the start context is the only stop mechanism needed.
type ServiceFunc struct {
	StartFn func(ctx context.Context) error
	StopFn  func()
}

// Start runs the start function.
func (s *ServiceFunc) Start(ctx context.Context) error { return s.StartFn(ctx) }

// Stop runs the stop function if one was provided.
func (s *ServiceFunc) Stop() {
	if s.StopFn != nil {
		s.StopFn()
	}
}

// Lifecycle starts registered services in order and stops them in reverse
// order when a termination signal arrives, the context is cancelled, or any
// service fails.
type Lifecycle struct {
	logger *zap.Logger

	mu       sync.Mutex
	services []namedService
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates an empty Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a service under a name used in logs. Services start in
// registration order and stop in the reverse of it.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts every registered service and blocks until SIGINT or SIGTERM,
// context cancellation, or the first service failure. It then stops all
// services in reverse registration order.
//
// Postcondition: Every service's Stop has returned when Run returns. The
// first service failure, if any, is returned.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.mu.Lock()
	services := make([]namedService, len(l.services))
	copy(services, l.services)
	l.mu.Unlock()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for _, ns := range services {
		wg.Add(1)
		go func(ns namedService) {
			defer wg.Done()
			l.logger.Info("starting service", zap.String("service", ns.name))
			svcStart := time.Now()
			if err := ns.service.Start(runCtx); err != nil && runCtx.Err() == nil {
				l.logger.Error("service failed",
					zap.String("service", ns.name),
					zap.Duration("uptime", time.Since(svcStart)),
					zap.Error(err),
				)
				cancel(fmt.Errorf("service %s: %w", ns.name, err))
			}
		}(ns)
	}

	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	<-runCtx.Done()
	if cause := context.Cause(runCtx); cause != nil && cause != runCtx.Err() {
		l.logger.Error("shutting down after service error", zap.Error(cause))
	} else {
		l.logger.Info("shutting down", zap.String("reason", runCtx.Err().Error()))
	}

	shutdownStart := time.Now()
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		svcStart := time.Now()
		l.logger.Info("stopping service", zap.String("service", ns.name))
		ns.service.Stop()
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(svcStart)),
		)
	}
	wg.Wait()

	l.logger.Info("shutdown complete",
		zap.Duration("shutdown_elapsed", time.Since(shutdownStart)),
		zap.Duration("total_uptime", time.Since(start)),
	)

	if cause := context.Cause(runCtx); !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}
