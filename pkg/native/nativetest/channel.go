// Package nativetest provides in-memory generator channels for tests.
package nativetest

import (
	"context"
	"sync"

	"github.com/starwell/voidvault-bridge/pkg/native"
)

// Channel is an in-memory native.Channel. Messages queued with Deliver, and
// replies produced by Responder, reach the OnMessage handler in order on a
// single goroutine once Start has been called.
type Channel struct {
	// Responder, when set, produces the replies for each sent request.
	Responder func(native.Request) []native.Message

	// SendErr, when set, is returned by every Send.
	SendErr error

	mu           sync.Mutex
	sent         []native.Request
	onMessage    func(native.Message)
	onDisconnect func(error)
	queue        []delivery
	started      bool
	closed       bool
	ended        bool
	wake         chan struct{}
	done         chan struct{}
}

type delivery struct {
	msg        native.Message
	disconnect bool
	err        error
}

func NewChannel() *Channel {
	return &Channel{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (c *Channel) OnMessage(fn func(native.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

func (c *Channel) OnDisconnect(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

func (c *Channel) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	go c.run()
}

// Send records req and queues the Responder's replies.
func (c *Channel) Send(req native.Request) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return native.ErrClosed
	}
	if c.SendErr != nil {
		err := c.SendErr
		c.mu.Unlock()
		return err
	}
	c.sent = append(c.sent, req)
	responder := c.Responder
	c.mu.Unlock()

	if responder != nil {
		for _, m := range responder(req) {
			c.Deliver(m)
		}
	}
	return nil
}

// Close ends the channel locally; the disconnect handler sees nil.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.enqueue(delivery{disconnect: true})
	c.mu.Unlock()

	if !started {
		c.Start()
	}
	return nil
}

// Deliver queues an inbound message.
func (c *Channel) Deliver(m native.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueue(delivery{msg: m})
}

// Disconnect simulates the generator going away with err after every
// message already queued.
func (c *Channel) Disconnect(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.enqueue(delivery{disconnect: true, err: err})
}

// Sent returns a copy of every request sent so far.
func (c *Channel) Sent() []native.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]native.Request, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentTypes returns the Type of every request sent so far. Keystrokes show
// up as "".
func (c *Channel) SentTypes() []native.RequestType {
	sent := c.Sent()
	out := make([]native.RequestType, len(sent))
	for i, r := range sent {
		out[i] = r.Type
	}
	return out
}

// Closed reports whether Close or Disconnect has been called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Done is closed after the disconnect handler has run.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) enqueue(d delivery) {
	if c.ended {
		return
	}
	c.queue = append(c.queue, d)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Channel) run() {
	for range c.wake {
		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			d := c.queue[0]
			c.queue = c.queue[1:]
			if d.disconnect {
				c.ended = true
				c.queue = nil
			}
			onMessage, onDisconnect := c.onMessage, c.onDisconnect
			c.mu.Unlock()

			if d.disconnect {
				if onDisconnect != nil {
					onDisconnect(d.err)
				}
				close(c.done)
				return
			}
			if onMessage != nil {
				onMessage(d.msg)
			}
		}
	}
}

// Dialer hands out a fresh Channel per Dial and remembers them.
type Dialer struct {
	// Err, when set, fails every Dial.
	Err error

	// Setup, when set, configures each new channel before it is returned.
	Setup func(*Channel)

	mu       sync.Mutex
	channels []*Channel
}

func (d *Dialer) Dial(ctx context.Context) (native.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}
	ch := NewChannel()
	if d.Setup != nil {
		d.Setup(ch)
	}
	d.mu.Lock()
	d.channels = append(d.channels, ch)
	d.mu.Unlock()
	return ch, nil
}

// Channels returns every channel dialed so far.
func (d *Dialer) Channels() []*Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Channel, len(d.channels))
	copy(out, d.channels)
	return out
}

// Last returns the most recently dialed channel, or nil.
func (d *Dialer) Last() *Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.channels) == 0 {
		return nil
	}
	return d.channels[len(d.channels)-1]
}

var _ native.Channel = (*Channel)(nil)
var _ native.Dialer = (*Dialer)(nil)
