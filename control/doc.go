// Package control
// Author: momentics <momentics@gmail.com>
//
// Load-screen affinity control, responsiveness watchdog, runtime tunables,
// metrics and debug introspection. Part of the coreparker core.
//
// Provides concurrent-safe state handling primitives including:
//   - Idle/Loading state machine driving the target's affinity mask
//   - Priority escalation with reassertion while a load hangs
//   - Atomic park-count tunable with change listeners and a stdin feed
//   - Prometheus collectors, probe registration and state export
//
// Every piece of state shared between loops is a single atomic word; no lock
// spans more than one field.
package control
