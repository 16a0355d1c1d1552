// Package native speaks the generator's length-prefixed JSON protocol over a
// byte stream, usually the stdin and stdout of the generator process.
package native

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/starwell/voidvault-bridge/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("native")
	if err != nil {
		debugLog.Warnf("Failed to initialize native logger, using stderr fallback: %v", err)
	}
}

// Channel is a bidirectional message stream to one generator instance.
//
// Handlers must be registered before Start; nothing is delivered until then.
// OnMessage handlers run in arrival order on a single goroutine. The
// disconnect handler runs exactly once, after the last message, with nil for
// a local Close and a non-nil error otherwise.
type Channel interface {
	Send(req Request) error
	OnMessage(fn func(Message))
	OnDisconnect(fn func(error))
	Start()
	Close() error
}

// Dialer opens channels.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Channel, error)

func (f DialerFunc) Dial(ctx context.Context) (Channel, error) {
	return f(ctx)
}

// Conn is a Channel over any io.ReadWriteCloser.
type Conn struct {
	rwc io.ReadWriteCloser

	writeMu sync.Mutex

	mu           sync.Mutex
	onMessage    func(Message)
	onDisconnect func(error)
	started      bool
	closed       bool

	closeOnce      sync.Once
	disconnectOnce sync.Once
	done           chan struct{}
}

// NewConn wraps rwc. The caller hands ownership of rwc to the Conn.
func NewConn(rwc io.ReadWriteCloser) *Conn {
	return &Conn{
		rwc:  rwc,
		done: make(chan struct{}),
	}
}

func (c *Conn) OnMessage(fn func(Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

func (c *Conn) OnDisconnect(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// Start begins reading. Calling it more than once has no effect.
func (c *Conn) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.readLoop()
}

// Send frames and writes req. Writes are serialized, so requests reach the
// generator in call order.
func (c *Conn) Send(req Request) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := Encode(req)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := WriteFrame(c.rwc, payload); err != nil {
		return errors.Join(ErrDisconnected, err)
	}
	return nil
}

// Close releases the stream. It is idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		started := c.started
		c.mu.Unlock()

		err = c.rwc.Close()
		if !started {
			c.disconnect(nil)
		}
	})
	return err
}

// Done is closed once the disconnect handler has run.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) readLoop() {
	for {
		payload, err := ReadFrame(c.rwc)
		if err != nil {
			c.disconnect(c.classify(err))
			return
		}

		msg, err := Decode(payload)
		if err != nil {
			debugLog.Warnf("dropping undecodable frame (%d bytes): %v", len(payload), err)
			continue
		}

		c.mu.Lock()
		fn := c.onMessage
		c.mu.Unlock()
		if fn != nil {
			fn(msg)
		}
	}
}

func (c *Conn) classify(err error) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	switch {
	case closed:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, os.ErrClosed):
		return ErrDisconnected
	default:
		debugLog.Errorf("native transport error: %v", err)
		return errors.Join(ErrDisconnected, err)
	}
}

func (c *Conn) disconnect(err error) {
	c.disconnectOnce.Do(func() {
		// Make sure a remote exit also releases local resources.
		c.mu.Lock()
		alreadyClosed := c.closed
		c.closed = true
		fn := c.onDisconnect
		c.mu.Unlock()
		if !alreadyClosed {
			c.closeOnce.Do(func() {
				c.rwc.Close()
			})
		}

		if err != nil {
			debugLog.Infof("generator channel disconnected: %v", err)
		}
		if fn != nil {
			fn(err)
		}
		close(c.done)
	})
}
