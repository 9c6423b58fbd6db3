// File: control/input.go
// Author: momentics <momentics@gmail.com>
//
// Operator side channel: integers typed on stdin replace the park count.

package control

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// TunableInput feeds operator-supplied integers into a Tunable.
type TunableInput struct {
	r   io.Reader
	t   *Tunable
	log *slog.Logger
}

// NewTunableInput reads lines from r.
func NewTunableInput(r io.Reader, t *Tunable, log *slog.Logger) *TunableInput {
	if log == nil {
		log = slog.Default()
	}
	return &TunableInput{r: r, t: t, log: log}
}

// Apply handles one input line and reports whether the tunable changed.
// Unparseable lines are ignored silently.
func (in *TunableInput) Apply(line string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return false
	}
	if err := in.t.Set(n); err != nil {
		if errors.Is(err, ErrOutOfRange) {
			in.log.Error("rejected park count", "value", n, "max", in.t.Limit()-1)
		}
		return false
	}
	in.log.Info("cores to park updated", "value", n)
	return true
}

// Run consumes the reader until EOF or ctx ends. The blocking read happens
// on a helper goroutine, so cancellation is observed between lines.
func (in *TunableInput) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in.r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			in.Apply(line)
		}
	}
}
