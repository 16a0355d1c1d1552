package native

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// killGrace is how long a generator gets to exit after its stdin closes.
const killGrace = 2 * time.Second

// HostConfig describes how to launch the generator executable.
type HostConfig struct {
	// Path to the generator binary.
	Path string

	// Account selects a stored password; empty means the default one.
	Account string

	// Stderr receives the generator's diagnostics. Nil discards them.
	Stderr io.Writer
}

func (c HostConfig) args() []string {
	args := []string{"--json-io"}
	if c.Account != "" {
		args = append(args, "--account", c.Account)
	}
	return args
}

// Dialer returns a Dialer that launches a new generator per channel.
func (c HostConfig) Dialer() Dialer {
	return DialerFunc(func(ctx context.Context) (Channel, error) {
		return Dial(ctx, c)
	})
}

// process adapts a running generator to io.ReadWriteCloser. The process is
// reaped only after stdout has hit EOF, since Wait closes the stdout pipe.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	drained     chan struct{}
	drainedOnce sync.Once
	exited      chan struct{}
}

func (p *process) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if err != nil {
		p.markDrained()
	}
	return n, err
}

func (p *process) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

func (p *process) markDrained() {
	p.drainedOnce.Do(func() { close(p.drained) })
}

// Close closes stdin, which makes the generator exit, and kills it if it
// lingers. Unread stdout is abandoned after a kill.
func (p *process) Close() error {
	err := p.stdin.Close()
	select {
	case <-p.exited:
	case <-time.After(killGrace):
		debugLog.Warnf("generator pid %d did not exit, killing", p.cmd.Process.Pid)
		if kerr := p.cmd.Process.Kill(); kerr != nil {
			err = errors.Join(err, kerr)
		}
		p.markDrained()
		<-p.exited
	}
	return err
}

// Dial launches the generator and returns a Conn over its stdin and stdout.
// The caller registers handlers and then calls Start.
func Dial(ctx context.Context, cfg HostConfig) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: no generator path configured", ErrChannelOpen)
	}

	cmd := exec.Command(cfg.Path, cfg.args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelOpen, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelOpen, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelOpen, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelOpen, err)
	}
	debugLog.Debugf("started generator pid %d", cmd.Process.Pid)

	p := &process{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		drained: make(chan struct{}),
		exited:  make(chan struct{}),
	}

	sink := cfg.Stderr
	if sink == nil {
		sink = io.Discard
	}

	var g errgroup.Group
	g.Go(func() error {
		if _, err := io.Copy(sink, stderr); err != nil {
			return fmt.Errorf("stderr: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-p.drained
		return nil
	})
	go func() {
		defer close(p.exited)
		if err := g.Wait(); err != nil {
			debugLog.Warnf("generator pid %d output: %v", cmd.Process.Pid, err)
		}
		if err := cmd.Wait(); err != nil {
			debugLog.Infof("generator pid %d exited: %v", cmd.Process.Pid, err)
			return
		}
		debugLog.Debugf("generator pid %d exited cleanly", cmd.Process.Pid)
	}()

	return NewConn(p), nil
}
