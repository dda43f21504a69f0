package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// CancellationManager handles graceful shutdown on interrupt: new work stops
// being submitted, in-flight operations finish, the process exits non-zero
type CancellationManager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled bool
	mu        sync.Mutex
}

// NewCancellationManager creates a new cancellation manager
func NewCancellationManager() *CancellationManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &CancellationManager{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the cancellation context
func (cm *CancellationManager) Context() context.Context {
	return cm.ctx
}

// Cancel cancels all operations
func (cm *CancellationManager) Cancel() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.cancelled {
		cm.cancelled = true
		cm.cancel()
	}
}

// IsCancelled returns true if cancellation was requested
func (cm *CancellationManager) IsCancelled() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.cancelled
}

// WatchSignals cancels the manager on SIGINT/SIGTERM. Returns a stop
// function that releases the signal handler.
func (cm *CancellationManager) WatchSignals(log *zap.SugaredLogger) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			log.Warnw("interrupt received, finishing in-flight files", "signal", sig.String())
			cm.Cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
