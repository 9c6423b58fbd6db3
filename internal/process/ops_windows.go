//go:build windows
// +build windows

// File: internal/process/ops_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows process control: toolhelp snapshots for names, top-level window
// enumeration for titles and hang detection, priority classes and
// SetProcessAffinityMask.
//
// Reference: https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-setprocessaffinitymask

package process

import (
	"errors"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/coreparker/affinity"
	"github.com/momentics/coreparker/api"
)

var (
	moduser32           = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW  = moduser32.NewProc("GetWindowTextW")
	procIsHungAppWindow = moduser32.NewProc("IsHungAppWindow")
)

type window struct {
	hwnd  windows.HWND
	title string
}

// Callbacks are a limited resource, so one is created for the process
// lifetime and fed through enumOut under enumMu.
var (
	enumMu   sync.Mutex
	enumOut  map[uint32][]window
	enumProc = windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		if !windows.IsWindowVisible(hwnd) {
			return 1
		}
		var pid uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
			return 1
		}
		enumOut[pid] = append(enumOut[pid], window{hwnd: hwnd, title: windowText(hwnd)})
		return 1
	})
)

func windowText(hwnd windows.HWND) string {
	buf := make([]uint16, 256)
	n, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if int(n) > len(buf) {
		n = uintptr(len(buf))
	}
	return windows.UTF16ToString(buf[:n])
}

// topWindows maps PIDs to their visible top-level windows.
func topWindows() (map[uint32][]window, error) {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumOut = make(map[uint32][]window)
	err := windows.EnumWindows(enumProc, nil)
	out := enumOut
	enumOut = nil
	if err != nil {
		return nil, err
	}
	return out, nil
}

type windowsOps struct{}

// NewOS returns the process operations of the running platform.
func NewOS() (api.ProcessOps, error) {
	return windowsOps{}, nil
}

func (windowsOps) Discover(matches []api.Match) (api.Target, bool, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return api.Target{}, false, err
	}
	defer windows.CloseHandle(snap)

	type entry struct {
		pid  uint32
		name string
	}
	var procs []entry
	var e windows.ProcessEntry32
	e.Size = uint32(unsafe.Sizeof(e))
	for err = windows.Process32First(snap, &e); err == nil; err = windows.Process32Next(snap, &e) {
		procs = append(procs, entry{pid: e.ProcessID, name: windows.UTF16ToString(e.ExeFile[:])})
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return api.Target{}, false, err
	}

	wins, err := topWindows()
	if err != nil {
		return api.Target{}, false, err
	}
	for _, m := range matches {
		want := strings.ToLower(m.Name)
		for _, p := range procs {
			if want == "" || !strings.Contains(strings.ToLower(p.name), want) {
				continue
			}
			title, ok := matchTitle(wins[p.pid], m.Title)
			if !ok {
				continue
			}
			return api.Target{PID: int(p.pid), Name: p.name, Title: title}, true, nil
		}
	}
	return api.Target{}, false, nil
}

// matchTitle picks the window whose title equals want. An empty want accepts
// any process, windowed or not.
func matchTitle(ws []window, want string) (string, bool) {
	if want == "" {
		if len(ws) > 0 {
			return ws[0].title, true
		}
		return "", true
	}
	for _, w := range ws {
		if strings.EqualFold(w.title, want) {
			return w.title, true
		}
	}
	return "", false
}

func open(pid int, access uint32) (windows.Handle, error) {
	h, err := windows.OpenProcess(access, false, uint32(pid))
	if err != nil {
		code := api.ErrCodeInternal
		switch {
		case errors.Is(err, windows.ERROR_ACCESS_DENIED):
			code = api.ErrCodeAccessDenied
		case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
			return 0, api.ErrTargetExited
		}
		return 0, api.NewError(code, "OpenProcess failed").WithContext("pid", pid).WithCause(err)
	}
	return h, nil
}

func (windowsOps) SetAffinity(pid int, mask uint64) error {
	h, err := open(pid, windows.PROCESS_SET_INFORMATION|windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	return affinity.SetProcessAffinityMask(h, mask)
}

func (windowsOps) Priority(pid int) (api.Priority, error) {
	h, err := open(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return api.PriorityNormal, err
	}
	defer windows.CloseHandle(h)
	class, err := windows.GetPriorityClass(h)
	if err != nil {
		return api.PriorityNormal, err
	}
	switch class {
	case windows.REALTIME_PRIORITY_CLASS:
		return api.PriorityRealtime, nil
	case windows.HIGH_PRIORITY_CLASS:
		return api.PriorityHigh, nil
	default:
		return api.PriorityNormal, nil
	}
}

func (windowsOps) SetPriority(pid int, p api.Priority) error {
	h, err := open(pid, windows.PROCESS_SET_INFORMATION)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	class := uint32(windows.NORMAL_PRIORITY_CLASS)
	switch p {
	case api.PriorityHigh:
		class = windows.HIGH_PRIORITY_CLASS
	case api.PriorityRealtime:
		class = windows.REALTIME_PRIORITY_CLASS
	}
	return windows.SetPriorityClass(h, class)
}

// Responsive is false when any visible top-level window of pid is hung.
func (windowsOps) Responsive(pid int) (bool, error) {
	wins, err := topWindows()
	if err != nil {
		return true, err
	}
	for _, w := range wins[uint32(pid)] {
		hung, _, _ := procIsHungAppWindow.Call(uintptr(w.hwnd))
		if hung != 0 {
			return false, nil
		}
	}
	return true, nil
}

func (windowsOps) Exited(pid int) bool {
	h, err := open(pid, windows.SYNCHRONIZE)
	if err != nil {
		return true
	}
	defer windows.CloseHandle(h)
	ev, err := windows.WaitForSingleObject(h, 0)
	if err != nil {
		return true
	}
	return ev == windows.WAIT_OBJECT_0
}

func (windowsOps) Executable(pid int) (string, error) {
	h, err := open(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(h)
	buf := make([]uint16, 32768)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf[:size]), nil
}
