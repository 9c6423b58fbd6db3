// Package tail
// Author: momentics <momentics@gmail.com>
//
// Polling follower for an append-only text log written by another process.
// The file is opened for shared reading and positioned at its end, so only
// lines appended after Open are ever produced. Complete lines are buffered in
// a FIFO until consumed; an unterminated fragment waits for its newline.

package tail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/eapache/queue"
)

// Defaults for Tailer.
const (
	DefaultPollInterval = 20 * time.Millisecond
	DefaultMaxLineLen   = 256
	DefaultMaxPending   = 64 << 10
	readChunk           = 4096
)

// Tailer yields complete lines appended to a file after it was opened.
// A Tailer is not safe for concurrent use.
type Tailer struct {
	path       string
	f          *os.File
	poll       time.Duration
	maxLineLen int
	maxPending int

	buf      []byte
	pending  []byte
	lines    *queue.Queue
	overflow bool
	err      error

	skipped atomic.Uint64
	lineCnt atomic.Uint64
}

// Option customizes a Tailer.
type Option func(*Tailer)

// WithPollInterval sets the sleep between reads that find no new line.
func WithPollInterval(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.poll = d
		}
	}
}

// WithMaxLineLen sets the longest accepted line, in characters.
func WithMaxLineLen(n int) Option {
	return func(t *Tailer) {
		if n > 0 {
			t.maxLineLen = n
		}
	}
}

// WithMaxPending bounds an unterminated fragment. Longer fragments are
// dropped up to the next newline.
func WithMaxPending(n int) Option {
	return func(t *Tailer) {
		if n > 0 {
			t.maxPending = n
		}
	}
}

// Open opens path and seeks to its end.
func Open(path string, opts ...Option) (*Tailer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tail: open %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("tail: seek %s: %w", path, err)
	}
	t := &Tailer{
		path:       path,
		f:          f,
		poll:       DefaultPollInterval,
		maxLineLen: DefaultMaxLineLen,
		maxPending: DefaultMaxPending,
		buf:        make([]byte, readChunk),
		lines:      queue.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Path returns the followed file.
func (t *Tailer) Path() string { return t.path }

// Skipped counts blank and overlong lines dropped so far.
func (t *Tailer) Skipped() uint64 { return t.skipped.Load() }

// Delivered counts lines returned by Next.
func (t *Tailer) Delivered() uint64 { return t.lineCnt.Load() }

// Close releases the file.
func (t *Tailer) Close() error {
	return t.f.Close()
}

// Next blocks until a complete accepted line is available or ctx ends.
func (t *Tailer) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		for t.lines.Length() > 0 {
			line := t.lines.Remove().(string)
			if t.accept(line) {
				t.lineCnt.Add(1)
				return line, nil
			}
			t.skipped.Add(1)
		}
		n, err := t.fill()
		if err != nil {
			return "", err
		}
		if n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.poll):
		}
	}
}

// Lines exposes Next as a sequence. It stops on cancellation or read error;
// Err reports which.
func (t *Tailer) Lines(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			line, err := t.Next(ctx)
			if err != nil {
				t.err = err
				return
			}
			if !yield(line) {
				return
			}
		}
	}
}

// Err returns the error that ended the last Lines sequence.
func (t *Tailer) Err() error { return t.err }

func (t *Tailer) accept(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return utf8.RuneCountInString(line) <= t.maxLineLen
}

// fill reads one chunk and queues the complete lines it closes. It returns
// the number of bytes read; 0 means no new data.
func (t *Tailer) fill() (int, error) {
	n, err := t.f.Read(t.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("tail: read %s: %w", t.path, err)
	}
	if n == 0 {
		return 0, nil
	}
	data := t.buf[:n]
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			t.hold(data)
			break
		}
		t.hold(data[:i])
		if t.overflow {
			t.skipped.Add(1)
			t.overflow = false
		} else {
			t.lines.Add(string(bytes.TrimSuffix(t.pending, []byte{'\r'})))
		}
		t.pending = t.pending[:0]
		data = data[i+1:]
	}
	return n, nil
}

// hold appends an unterminated fragment, switching to discard mode once it
// exceeds maxPending.
func (t *Tailer) hold(frag []byte) {
	if t.overflow {
		return
	}
	if len(t.pending)+len(frag) > t.maxPending {
		t.overflow = true
		t.pending = t.pending[:0]
		return
	}
	t.pending = append(t.pending, frag...)
}
