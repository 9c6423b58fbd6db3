// Package gamedir
// Author: momentics <momentics@gmail.com>
//
// Game installation and client log discovery.

package gamedir

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoLogFile is returned when none of the candidate log files exists.
var ErrNoLogFile = errors.New("gamedir: no client log file found")

// Dir returns the directory holding exePath, or fallback when exePath is
// unknown.
func Dir(exePath, fallback string, log *slog.Logger) string {
	if exePath == "" {
		log.Error("could not detect game directory, using fallback", "fallback", fallback)
		return fallback
	}
	// Windows paths reported by Wine use backslashes.
	dir := filepath.Dir(filepath.FromSlash(strings.ReplaceAll(exePath, `\`, "/")))
	if dir == "." || dir == "" {
		log.Error("could not detect game directory, using fallback", "fallback", fallback, "exe", exePath)
		return fallback
	}
	return dir
}

// SelectLog returns the first candidate that exists under gameDir/logDir.
func SelectLog(gameDir, logDir string, candidates []string) (string, error) {
	base := filepath.Join(gameDir, logDir)
	for _, name := range candidates {
		p := filepath.Join(base, name)
		if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s (tried %s)", ErrNoLogFile, base, strings.Join(candidates, ", "))
}

// RescanInterval bounds how long WaitForLog relies on watch events alone.
const RescanInterval = time.Second

// nearestDir returns dir or its closest existing ancestor.
func nearestDir(dir string) string {
	for {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// logWatch keeps an fsnotify watch on the log directory, or on its nearest
// existing ancestor until the directory is created.
type logWatch struct {
	w       *fsnotify.Watcher
	watched string
	log     *slog.Logger
}

// follow moves the watch to the nearest existing directory of base.
func (lw *logWatch) follow(base string) {
	if lw.w == nil {
		return
	}
	dir := nearestDir(base)
	if dir == lw.watched {
		return
	}
	if err := lw.w.Add(dir); err != nil {
		lw.log.Error("could not watch for the client log, polling instead", "dir", dir, "err", err)
		return
	}
	if lw.watched != "" {
		_ = lw.w.Remove(lw.watched)
	}
	lw.watched = dir
}

// WaitForLog returns the selected log, waiting for the log directory and
// file to be created when they do not exist yet. Watch failures are logged
// and the wait falls back to rescanning; only ctx ends it early.
func WaitForLog(ctx context.Context, gameDir, logDir string, candidates []string, log *slog.Logger) (string, error) {
	if p, err := SelectLog(gameDir, logDir, candidates); err == nil {
		return p, nil
	}
	base := filepath.Join(gameDir, logDir)
	log.Warn("client log not found yet, waiting for it to be created", "dir", base)

	lw := &logWatch{log: log}
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if w, err := fsnotify.NewWatcher(); err != nil {
		log.Error("could not create a file watcher, polling instead", "err", err)
	} else {
		defer w.Close()
		lw.w = w
		events, errs = w.Events, w.Errors
	}
	lw.follow(base)

	rescan := time.NewTicker(RescanInterval)
	defer rescan.Stop()
	for {
		// The directory or file may have appeared before the watch moved.
		if p, err := SelectLog(gameDir, logDir, candidates); err == nil {
			return p, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-rescan.C:
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn("log directory watch error", "err", err)
		}
		lw.follow(base)
	}
}
