package native

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// scriptedDialer starts a fake host per Dial that answers with reply.
func scriptedDialer(reply func(Request) []string) (Dialer, *atomic.Int32) {
	var dials atomic.Int32
	return DialerFunc(func(ctx context.Context) (Channel, error) {
		dials.Add(1)
		conn, host := newPipeConn()
		host.serve(reply)
		return conn, nil
	}), &dials
}

// exitingDialer simulates a generator without a configured password, which
// exits before answering anything.
func exitingDialer() Dialer {
	return DialerFunc(func(ctx context.Context) (Channel, error) {
		conn, host := newPipeConn()
		go func() {
			// Drain whatever is sent so Send does not block, then exit.
			go ReadFrame(host.in)
			host.out.Close()
		}()
		return conn, nil
	})
}

func TestQuery_AcceptedMessage(t *testing.T) {
	defer goleak.VerifyNone(t)

	dialer, dials := scriptedDialer(func(req Request) []string {
		if req.Type == TypeGetCounter && req.Domain == "example.com" {
			return []string{`{"output":"ignored"}`, `{"counter":4}`}
		}
		return nil
	})

	n, ok, err := GetCounter(context.Background(), dialer, "example.com", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint16(4), n)
	assert.Equal(t, int32(1), dials.Load())
}

func TestQuery_UnknownCounter(t *testing.T) {
	defer goleak.VerifyNone(t)

	dialer, _ := scriptedDialer(func(req Request) []string {
		return []string{`{"counter":null}`}
	})

	_, ok, err := GetCounter(context.Background(), dialer, "fresh.example", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQuery_GeneratorError(t *testing.T) {
	defer goleak.VerifyNone(t)

	dialer, _ := scriptedDialer(func(req Request) []string {
		return []string{`{"error":"Missing domain"}`}
	})

	err := SetCounter(context.Background(), dialer, "", 3, time.Second)
	var genErr *GeneratorError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "Missing domain", genErr.Message)
}

func TestQuery_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	dialer, _ := scriptedDialer(func(req Request) []string { return nil })

	start := time.Now()
	_, _, err := GetRules(context.Background(), dialer, "slow.example", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestQuery_ContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	dialer, _ := scriptedDialer(func(req Request) []string { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := SetRules(ctx, dialer, "a.io", 8, 4, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQuery_DialFailure(t *testing.T) {
	dialer := DialerFunc(func(ctx context.Context) (Channel, error) {
		return nil, errors.New("exec: not found")
	})

	_, err := Query(context.Background(), dialer, Hello(), func(Message) bool { return true }, time.Second)
	assert.ErrorIs(t, err, ErrChannelOpen)
}

func TestCheckConfigured(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("configured generator answers", func(t *testing.T) {
		dialer, _ := scriptedDialer(func(req Request) []string {
			if req.Type == TypeHello {
				return []string{`{"status":"ready"}`}
			}
			return nil
		})
		ok, err := CheckConfigured(context.Background(), dialer, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unconfigured generator exits", func(t *testing.T) {
		ok, err := CheckConfigured(context.Background(), exitingDialer(), time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGetRules(t *testing.T) {
	defer goleak.VerifyNone(t)

	var seen []Request
	dialer, _ := scriptedDialer(func(req Request) []string {
		seen = append(seen, req)
		if req.Type == TypeActivate {
			return []string{`{"saved_counter":2,"active_counter":2,"max_length":20,"char_types":7,"status":"ready"}`}
		}
		return nil
	})
	maxLength, charTypes, err := GetRules(context.Background(), dialer, "a.io", time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint16(20), maxLength)
	assert.Equal(t, uint8(7), charTypes)
	require.Len(t, seen, 1)
	assert.Equal(t, Init("a.io"), seen[0])
}
