//go:build linux
// +build linux

// File: internal/process/ops_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux process control on procfs and sched_setaffinity/setpriority.
// Affinity and nice values are per thread on Linux, so both are applied to
// every task of the target.

package process

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"github.com/momentics/coreparker/affinity"
	"github.com/momentics/coreparker/api"
)

// Nice values used for each priority tier.
const (
	niceNormal   = 0
	niceHigh     = -10
	niceRealtime = -20
)

type linuxOps struct {
	fs procfs.FS
}

// NewOS returns the process operations of the running platform.
func NewOS() (api.ProcessOps, error) {
	return NewProcFS(procfs.DefaultMountPoint)
}

// NewProcFS reads processes from a procfs mounted at mountPoint.
func NewProcFS(mountPoint string) (api.ProcessOps, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, api.NewError(api.ErrCodeNotSupported, "procfs unavailable").WithContext("mount", mountPoint).WithCause(err)
	}
	return &linuxOps{fs: fs}, nil
}

// processNames returns the comm name and argv[0] base name. Games running
// under Wine report a Windows path in argv[0].
func processNames(p procfs.Proc) []string {
	var names []string
	if comm, err := p.Comm(); err == nil && comm != "" {
		names = append(names, comm)
	}
	if args, err := p.CmdLine(); err == nil && len(args) > 0 {
		arg0 := strings.ReplaceAll(args[0], `\`, "/")
		names = append(names, path.Base(arg0))
	}
	return names
}

func (o *linuxOps) Discover(matches []api.Match) (api.Target, bool, error) {
	procs, err := o.fs.AllProcs()
	if err != nil {
		return api.Target{}, false, err
	}
	for _, m := range matches {
		want := strings.ToLower(m.Name)
		for _, p := range procs {
			for _, name := range processNames(p) {
				if want != "" && strings.Contains(strings.ToLower(name), want) {
					return api.Target{PID: p.PID, Name: name}, true, nil
				}
			}
		}
	}
	return api.Target{}, false, nil
}

// forEachThread applies fn to every task of pid. It succeeds when at least
// one task was updated; tasks that exit in between are ignored.
func (o *linuxOps) forEachThread(pid int, fn func(tid int) error) error {
	threads, err := o.fs.AllThreads(pid)
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrTargetExited, err)
	}
	var (
		applied int
		errs    []error
	)
	for _, t := range threads {
		err := fn(t.PID)
		switch {
		case err == nil:
			applied++
		case errors.Is(err, unix.ESRCH):
		default:
			errs = append(errs, fmt.Errorf("tid %d: %w", t.PID, err))
		}
	}
	if applied == 0 && len(errs) == 0 {
		return api.ErrTargetExited
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (o *linuxOps) SetAffinity(pid int, mask uint64) error {
	set := affinity.CPUSet(mask)
	return o.forEachThread(pid, func(tid int) error {
		return unix.SchedSetaffinity(tid, &set)
	})
}

func (o *linuxOps) stat(pid int) (procfs.ProcStat, error) {
	p, err := o.fs.Proc(pid)
	if err != nil {
		return procfs.ProcStat{}, fmt.Errorf("%w: %v", api.ErrTargetExited, err)
	}
	st, err := p.Stat()
	if err != nil {
		return procfs.ProcStat{}, fmt.Errorf("%w: %v", api.ErrTargetExited, err)
	}
	return st, nil
}

func (o *linuxOps) Priority(pid int) (api.Priority, error) {
	st, err := o.stat(pid)
	if err != nil {
		return api.PriorityNormal, err
	}
	switch {
	case st.Nice <= niceRealtime:
		return api.PriorityRealtime, nil
	case st.Nice <= niceHigh:
		return api.PriorityHigh, nil
	default:
		return api.PriorityNormal, nil
	}
}

func (o *linuxOps) SetPriority(pid int, p api.Priority) error {
	nice := niceNormal
	switch p {
	case api.PriorityHigh:
		nice = niceHigh
	case api.PriorityRealtime:
		nice = niceRealtime
	}
	return o.forEachThread(pid, func(tid int) error {
		return unix.Setpriority(unix.PRIO_PROCESS, tid, nice)
	})
}

// Responsive treats uninterruptible sleep and stopped states as hung.
func (o *linuxOps) Responsive(pid int) (bool, error) {
	st, err := o.stat(pid)
	if err != nil {
		return false, err
	}
	switch st.State {
	case "D", "T", "t", "Z", "X":
		return false, nil
	}
	return true, nil
}

func (o *linuxOps) Exited(pid int) bool {
	st, err := o.stat(pid)
	if err != nil {
		return true
	}
	return st.State == "Z" || st.State == "X"
}

// Executable returns the image path of pid. Under Wine and Proton the
// kernel reports the loader, so the game's own path is rebuilt from the
// Windows-style argv[0].
func (o *linuxOps) Executable(pid int) (string, error) {
	p, err := o.fs.Proc(pid)
	if err != nil {
		return "", fmt.Errorf("%w: %v", api.ErrTargetExited, err)
	}
	exe, exeErr := p.Executable()
	if exeErr == nil && exe != "" && !isWineLoader(exe) {
		return exe, nil
	}
	if args, err := p.CmdLine(); err == nil && len(args) > 0 && args[0] != "" {
		if img, ok := wineImagePath(p, args[0]); ok {
			return img, nil
		}
	}
	return exe, exeErr
}

// isWineLoader reports whether exe is one of the wine, wine64 or
// wine*-preloader binaries.
func isWineLoader(exe string) bool {
	return strings.HasPrefix(path.Base(exe), "wine")
}

// wineImagePath maps a Windows argv[0] to a host path. Drive paths resolve
// through the dosdevices links of the process's Wine prefix; relative paths
// resolve against its working directory.
func wineImagePath(p procfs.Proc, arg0 string) (string, bool) {
	win := strings.ReplaceAll(arg0, `\`, "/")
	if len(win) >= 2 && win[1] == ':' {
		prefix := winePrefix(p)
		if prefix == "" {
			return "", false
		}
		return filepath.Join(prefix, "dosdevices", strings.ToLower(win[:2]), win[2:]), true
	}
	if path.IsAbs(win) {
		return win, true
	}
	cwd, err := p.Cwd()
	if err != nil || cwd == "" {
		return "", false
	}
	return filepath.Join(cwd, win), true
}

// winePrefix returns WINEPREFIX from the environment of p, or ~/.wine.
func winePrefix(p procfs.Proc) string {
	env, err := p.Environ()
	if err != nil {
		return ""
	}
	var prefix, home string
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		switch k {
		case "WINEPREFIX":
			prefix = v
		case "HOME":
			home = v
		}
	}
	if prefix == "" && home != "" {
		prefix = filepath.Join(home, ".wine")
	}
	return prefix
}
