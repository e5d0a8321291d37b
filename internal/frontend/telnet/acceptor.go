package telnet

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rockfordlhotka/Mordecai/internal/config"
)

// SessionHandler runs the command loop for one connected client.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn *Conn) error
}

// Acceptor listens for Telnet connections and hands each one to a
// SessionHandler on its own goroutine.
type Acceptor struct {
	cfg     config.TelnetConfig
	handler SessionHandler
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewAcceptor creates an Acceptor.
//
// Precondition: handler and logger must be non-nil.
func NewAcceptor(cfg config.TelnetConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		conns:   make(map[*Conn]struct{}),
	}
}

// Serve listens on the configured address and accepts connections until the
// context is cancelled or Stop is called. It blocks for the listener's
// lifetime.
//
// Postcondition: The listener is closed when Serve returns.
func (a *Acceptor) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		listener.Close()
		return nil
	}
	a.listener = listener
	a.mu.Unlock()

	a.logger.Info("telnet listener started",
		zap.String("addr", listener.Addr().String()),
	)

	go func() {
		<-ctx.Done()
		a.Stop()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			a.mu.Lock()
			closed := a.closed
			a.mu.Unlock()
			if closed || ctx.Err() != nil {
				return nil
			}
			a.logger.Error("accepting connection", zap.Error(err))
			continue
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.serveConn(ctx, conn)
		}()
	}
}

func (a *Acceptor) serveConn(ctx context.Context, raw net.Conn) {
	start := time.Now()
	addr := raw.RemoteAddr().String()
	a.logger.Info("client connected", zap.String("remote_addr", addr))

	conn := NewConn(raw, a.cfg.ReadTimeout, a.cfg.WriteTimeout)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		conn.Close()
		return
	}
	a.conns[conn] = struct{}{}
	a.mu.Unlock()

	defer func() {
		conn.Close()
		a.mu.Lock()
		delete(a.conns, conn)
		a.mu.Unlock()
	}()

	if err := conn.Negotiate(); err != nil {
		a.logger.Warn("telnet negotiation failed",
			zap.String("remote_addr", addr),
			zap.Error(err),
		)
		return
	}

	if err := a.handler.HandleSession(ctx, conn); err != nil {
		a.logger.Debug("session ended",
			zap.String("remote_addr", addr),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	a.logger.Info("session ended cleanly",
		zap.String("remote_addr", addr),
		zap.Duration("duration", time.Since(start)),
	)
}

// Stop closes the listener and waits for active sessions to finish. Safe to
// call more than once.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	listener := a.listener
	conns := make([]*Conn, 0, len(a.conns))
	for conn := range a.conns {
		conns = append(conns, conn)
	}
	a.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	// Closing the sockets unblocks sessions parked in ReadLine.
	for _, conn := range conns {
		conn.Close()
	}
	a.wg.Wait()
	a.logger.Info("telnet listener stopped")
}

// Addr returns the bound listen address, or "" before Serve binds one.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}
