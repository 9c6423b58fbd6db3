// File: control/tunable.go
// Author: momentics <momentics@gmail.com>
//
// Atomic park-count tunable with change listeners.

package control

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrOutOfRange is returned when a park count would leave no core enabled.
var ErrOutOfRange = errors.New("park count out of range")

// Tunable holds the number of cores to park during loads. Reads and writes
// are atomic; an update takes effect on the next transition.
type Tunable struct {
	v     atomic.Int64
	limit int

	mu        sync.RWMutex
	listeners []func(old, cur int)
}

// NewTunable creates a tunable accepting values in [0, limit). initial is
// clamped into that range.
func NewTunable(initial, limit int) *Tunable {
	if limit < 1 {
		limit = 1
	}
	if initial < 0 {
		initial = 0
	}
	if initial >= limit {
		initial = limit - 1
	}
	t := &Tunable{limit: limit}
	t.v.Store(int64(initial))
	return t
}

// Get returns the current park count.
func (t *Tunable) Get() int {
	return int(t.v.Load())
}

// Limit returns the exclusive upper bound.
func (t *Tunable) Limit() int {
	return t.limit
}

// Set stores n and notifies listeners.
func (t *Tunable) Set(n int) error {
	if n < 0 || n >= t.limit {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, n, t.limit-1)
	}
	old := int(t.v.Swap(int64(n)))
	t.dispatch(old, n)
	return nil
}

// OnChange registers a listener called synchronously after each Set.
func (t *Tunable) OnChange(fn func(old, cur int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Tunable) dispatch(old, cur int) {
	t.mu.RLock()
	ls := t.listeners
	t.mu.RUnlock()
	for _, fn := range ls {
		fn(old, cur)
	}
}
