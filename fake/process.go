// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"strings"
	"sync"

	"github.com/momentics/coreparker/api"
)

// Proc is one entry of the fake process table.
type Proc struct {
	api.Target
	Exe        string
	Mask       uint64
	Priority   api.Priority
	Hung       bool
	Exited     bool
	MaskWrites []uint64
}

// Ops is an in-memory api.ProcessOps. The zero value has no processes.
type Ops struct {
	mu    sync.Mutex
	procs map[int]*Proc

	// DiscoverErr, when set, is returned by Discover.
	DiscoverErr error
	// Lookups counts Discover calls.
	Lookups int
}

// NewOps returns an empty process table.
func NewOps() *Ops {
	return &Ops{procs: make(map[int]*Proc)}
}

// Launch adds a live process.
func (o *Ops) Launch(pid int, name, title string) *Proc {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.procs == nil {
		o.procs = make(map[int]*Proc)
	}
	p := &Proc{Target: api.Target{PID: pid, Name: name, Title: title}}
	o.procs[pid] = p
	return p
}

// Kill marks the process as exited.
func (o *Ops) Kill(pid int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.procs[pid]; ok {
		p.Exited = true
	}
}

// Remove drops the process from the table entirely.
func (o *Ops) Remove(pid int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.procs, pid)
}

// SetHung toggles the responsiveness of pid.
func (o *Ops) SetHung(pid int, hung bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.procs[pid]; ok {
		p.Hung = hung
	}
}

// ForcePriority changes the priority behind the controller's back.
func (o *Ops) ForcePriority(pid int, pr api.Priority) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.procs[pid]; ok {
		p.Priority = pr
	}
}

// Snapshot returns a copy of the process entry.
func (o *Ops) Snapshot(pid int) (Proc, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.procs[pid]
	if !ok {
		return Proc{}, false
	}
	cp := *p
	cp.MaskWrites = append([]uint64(nil), p.MaskWrites...)
	return cp, true
}

// Discover implements api.ProcessOps.
func (o *Ops) Discover(matches []api.Match) (api.Target, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Lookups++
	if o.DiscoverErr != nil {
		return api.Target{}, false, o.DiscoverErr
	}
	for _, m := range matches {
		for _, p := range o.procs {
			if p.Exited {
				continue
			}
			if m.Title != "" && !strings.EqualFold(m.Title, p.Title) {
				continue
			}
			if strings.Contains(p.Name, m.Name) {
				return p.Target, true, nil
			}
		}
	}
	return api.Target{}, false, nil
}

func (o *Ops) live(pid int) (*Proc, error) {
	p, ok := o.procs[pid]
	if !ok || p.Exited {
		return nil, api.ErrTargetExited
	}
	return p, nil
}

// SetAffinity implements api.ProcessOps.
func (o *Ops) SetAffinity(pid int, mask uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, err := o.live(pid)
	if err != nil {
		return err
	}
	p.Mask = mask
	p.MaskWrites = append(p.MaskWrites, mask)
	return nil
}

// Priority implements api.ProcessOps.
func (o *Ops) Priority(pid int) (api.Priority, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, err := o.live(pid)
	if err != nil {
		return api.PriorityNormal, err
	}
	return p.Priority, nil
}

// SetPriority implements api.ProcessOps.
func (o *Ops) SetPriority(pid int, pr api.Priority) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, err := o.live(pid)
	if err != nil {
		return err
	}
	p.Priority = pr
	return nil
}

// Responsive implements api.ProcessOps.
func (o *Ops) Responsive(pid int) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, err := o.live(pid)
	if err != nil {
		return false, err
	}
	return !p.Hung, nil
}

// Exited implements api.ProcessOps.
func (o *Ops) Exited(pid int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.live(pid)
	return err != nil
}

// Executable implements api.ProcessOps.
func (o *Ops) Executable(pid int) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, err := o.live(pid)
	if err != nil {
		return "", err
	}
	if p.Exe == "" {
		return "", api.NewError(api.ErrCodeNotFound, "executable path unavailable").WithContext("pid", pid)
	}
	return p.Exe, nil
}

var _ api.ProcessOps = (*Ops)(nil)
