package native

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// writeHost writes a shell script that prints the given frames on stdout, a
// line on stderr, and exits without reading stdin.
func writeHost(t *testing.T, payloads ...string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("host script needs a POSIX shell")
	}
	dir := t.TempDir()

	var frames bytes.Buffer
	for _, p := range payloads {
		require.NoError(t, WriteFrame(&frames, []byte(p)))
	}
	framesPath := filepath.Join(dir, "frames.bin")
	require.NoError(t, os.WriteFile(framesPath, frames.Bytes(), 0600))

	script := fmt.Sprintf("#!/bin/sh\ncat '%s'\necho 'host done' >&2\n", framesPath)
	hostPath := filepath.Join(dir, "host.sh")
	require.NoError(t, os.WriteFile(hostPath, []byte(script), 0700))
	return hostPath
}

func TestDial_DeliversEveryFrameBeforeExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	var payloads []string
	for i := 0; i < 200; i++ {
		payloads = append(payloads, fmt.Sprintf(`{"output":"%d"}`, i))
	}
	host := writeHost(t, payloads...)

	var stderr bytes.Buffer
	conn, err := Dial(context.Background(), HostConfig{Path: host, Stderr: &stderr})
	require.NoError(t, err)

	var (
		mu  sync.Mutex
		got []string
	)
	disconnected := make(chan error, 1)
	conn.OnMessage(func(m Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m.(Output).Text)
	})
	conn.OnDisconnect(func(err error) { disconnected <- err })
	conn.Start()

	select {
	case err := <-disconnected:
		assert.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(5 * time.Second):
		t.Fatal("host exit was not reported")
	}
	require.NoError(t, conn.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, len(payloads))
	for i, text := range got {
		assert.Equal(t, fmt.Sprint(i), text)
	}
	assert.Equal(t, "host done\n", stderr.String())
}

func TestDial_MissingPath(t *testing.T) {
	_, err := Dial(context.Background(), HostConfig{})
	assert.ErrorIs(t, err, ErrChannelOpen)
}
