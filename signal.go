// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
)

// signals defines the signals that are handled to do a clean shutdown.
// Conditional compilation is used to also include SIGTERM on Unix.
var signals = []os.Signal{os.Interrupt}

// shutdown runs registered cleanup handlers in LIFO order once a signal
// arrives or a shutdown is requested internally.
type shutdown struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	handlers []func()

	requests chan struct{}
	done     chan struct{}
}

// newShutdown starts listening for interrupt signals.  The returned context
// is cancelled as soon as shutdown begins.
func newShutdown() *shutdown {
	ctx, cancel := context.WithCancel(context.Background())
	s := &shutdown{
		ctx:      ctx,
		cancel:   cancel,
		requests: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, signals...)
	go s.wait(sigs)

	return s
}

func (s *shutdown) wait(sigs chan os.Signal) {
	select {
	case sig := <-sigs:
		log.Infof("Received signal (%s).  Shutting down...", sig)
	case <-s.requests:
		log.Info("Received shutdown request.  Shutting down...")
	}
	signal.Stop(sigs)
	s.cancel()

	s.mu.Lock()
	handlers := s.handlers
	s.handlers = nil
	s.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
	close(s.done)
}

// Context is cancelled when shutdown begins.
func (s *shutdown) Context() context.Context {
	return s.ctx
}

// AddHandler registers a cleanup function.  Handlers added after shutdown has
// started are not run.
func (s *shutdown) AddHandler(handler func()) {
	s.mu.Lock()
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

// Request starts the shutdown as if an interrupt had been received.
func (s *shutdown) Request() {
	select {
	case s.requests <- struct{}{}:
	default:
	}
}

// Done is closed after all handlers have run.
func (s *shutdown) Done() <-chan struct{} {
	return s.done
}
