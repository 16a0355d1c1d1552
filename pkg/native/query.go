package native

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type queryResult struct {
	msg Message
	err error
}

// Query opens a channel, sends req once and resolves with the first of: a
// message accepted by accept, a generator Error, a disconnect, the timeout or
// ctx ending. The channel is always closed before Query returns.
func Query(ctx context.Context, dialer Dialer, req Request, accept func(Message) bool, timeout time.Duration) (Message, error) {
	ch, err := dialer.Dial(ctx)
	if err != nil {
		if errors.Is(err, ErrChannelOpen) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrChannelOpen, err)
	}
	defer ch.Close()

	latch := NewLatch[queryResult]()
	ch.OnMessage(func(m Message) {
		if e, ok := m.(Error); ok {
			latch.Fire(queryResult{err: &GeneratorError{Message: e.Message}})
			return
		}
		if accept(m) {
			latch.Fire(queryResult{msg: m})
		}
	})
	ch.OnDisconnect(func(err error) {
		if err == nil {
			err = ErrDisconnected
		}
		latch.Fire(queryResult{err: err})
	})
	ch.Start()

	if err := ch.Send(req); err != nil {
		if errors.Is(err, ErrClosed) {
			err = ErrDisconnected
		}
		latch.Fire(queryResult{err: err})
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-latch.Done():
	case <-timer.C:
		latch.Fire(queryResult{err: ErrTimeout})
	case <-ctx.Done():
		latch.Fire(queryResult{err: ctx.Err()})
	}

	res := latch.Value()
	if res.err != nil {
		debugLog.Debugf("query %s failed: %v", req.Type, res.err)
	}
	return res.msg, res.err
}

// CheckConfigured reports whether the generator has a password configured.
// An unconfigured generator exits without answering, which shows up as a
// disconnect.
func CheckConfigured(ctx context.Context, dialer Dialer, timeout time.Duration) (bool, error) {
	_, err := Query(ctx, dialer, Hello(), func(m Message) bool {
		_, ok := m.(Ready)
		return ok
	}, timeout)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrDisconnected):
		return false, nil
	default:
		return false, err
	}
}

// GetCounter returns the stored counter for domain. ok is false when the
// generator has no entry for it.
func GetCounter(ctx context.Context, dialer Dialer, domain string, timeout time.Duration) (counter uint16, ok bool, err error) {
	m, err := Query(ctx, dialer, GetCounterRequest(domain), func(m Message) bool {
		_, ok := m.(CounterValue)
		return ok
	}, timeout)
	if err != nil {
		return 0, false, err
	}
	v := m.(CounterValue)
	if v.Counter == nil {
		return 0, false, nil
	}
	return *v.Counter, true, nil
}

// SetCounter stores counter for domain.
func SetCounter(ctx context.Context, dialer Dialer, domain string, counter uint16, timeout time.Duration) error {
	_, err := Query(ctx, dialer, SetCounterRequest(domain, counter), isSuccess, timeout)
	return err
}

// GetRules returns the generator's stored defaults for domain. The host has
// no request for them alone, so they are read from the Ready reply to a
// throwaway activation. A domain the host has never seen is stored at
// counter 0 as a side effect, exactly as its first real activation would.
func GetRules(ctx context.Context, dialer Dialer, domain string, timeout time.Duration) (maxLength uint16, charTypes uint8, err error) {
	m, err := Query(ctx, dialer, Init(domain), func(m Message) bool {
		_, ok := m.(Ready)
		return ok
	}, timeout)
	if err != nil {
		return 0, 0, err
	}
	r := m.(Ready)
	return r.MaxLength, r.CharTypes, nil
}

// SetRules stores the generator-side defaults for domain.
func SetRules(ctx context.Context, dialer Dialer, domain string, maxLength uint16, charTypes uint8, timeout time.Duration) error {
	_, err := Query(ctx, dialer, SetRulesRequest(domain, maxLength, charTypes), isSuccess, timeout)
	return err
}

func isSuccess(m Message) bool {
	_, ok := m.(Success)
	return ok
}
