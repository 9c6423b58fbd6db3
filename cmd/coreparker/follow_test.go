package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/coreparker/api"
	"github.com/momentics/coreparker/internal/diag"
)

type recorder struct {
	mu     sync.Mutex
	events []api.Event
}

func (r *recorder) Handle(_ context.Context, ev api.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) seen(ev api.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == ev {
			return true
		}
	}
	return false
}

type scriptedSource struct {
	lines []string
	err   error
}

func (s *scriptedSource) Next(context.Context) (string, error) {
	if len(s.lines) == 0 {
		return "", s.err
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func TestConsume_ReturnsReadError(t *testing.T) {
	readErr := errors.New("disk gone")
	src := &scriptedSource{lines: []string{"noise", lineOff, lineOn}, err: readErr}
	rec := &recorder{}

	err := consume(context.Background(), src, rec)
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, []api.Event{api.EventLoadStart, api.EventLoadEnd}, rec.events)
}

func TestFollower_ReopensAfterReadError(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "client.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(logPath), 0o755))
	require.NoError(t, os.WriteFile(logPath, nil, 0o644))

	f := &follower{
		gameDir:    dir,
		logDir:     "logs",
		candidates: []string{"client.txt"},
		poll:       time.Millisecond,
		retry:      5 * time.Millisecond,
		log:        diag.Discard(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	tl, err := f.open(ctx)
	require.NoError(t, err)
	// Break the tailer underneath the loop.
	require.NoError(t, tl.Close())

	rec := &recorder{}
	done := make(chan error, 1)
	go func() { done <- f.run(ctx, tl, rec) }()

	require.Eventually(t, func() bool {
		appendLine(t, logPath, lineOff)
		return rec.seen(api.EventLoadStart)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, logPath, f.Path())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("follower did not stop")
	}
}
