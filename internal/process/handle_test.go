package process_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/coreparker/affinity"
	"github.com/momentics/coreparker/api"
	"github.com/momentics/coreparker/fake"
	"github.com/momentics/coreparker/internal/diag"
	"github.com/momentics/coreparker/internal/process"
)

var poe = []api.Match{{Title: "Path of Exile 2", Name: "PathOfExile"}}

func newHandle(ops api.ProcessOps, budget time.Duration) *process.Handle {
	return process.NewHandle(ops, poe,
		process.WithBudget(5*time.Millisecond, budget),
		process.WithLogger(diag.Discard()))
}

func TestFindTarget_MatchesTitleAndName(t *testing.T) {
	ops := fake.NewOps()
	ops.Launch(10, "PathOfExile.exe", "Some other window")
	ops.Launch(11, "PathOfExileSteam.exe", "Path of Exile 2")

	h := newHandle(ops, 0)
	tgt, ok := h.FindTarget(context.Background())
	require.True(t, ok)
	assert.Equal(t, 11, tgt.PID)
}

func TestFindTarget_RetriesWithinBudget(t *testing.T) {
	ops := fake.NewOps()
	h := newHandle(ops, 30*time.Millisecond)

	start := time.Now()
	_, ok := h.FindTarget(context.Background())
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
	assert.Greater(t, ops.Lookups, 1)
}

func TestFindTarget_SkipsExited(t *testing.T) {
	ops := fake.NewOps()
	ops.Launch(5, "PathOfExile.exe", "Path of Exile 2")
	ops.Kill(5)
	_, ok := newHandle(ops, 0).FindTarget(context.Background())
	assert.False(t, ok)
}

func TestFindTarget_DiscoveryErrorIsNotFound(t *testing.T) {
	ops := fake.NewOps()
	ops.DiscoverErr = errors.New("snapshot failed")
	_, ok := newHandle(ops, 0).FindTarget(context.Background())
	assert.False(t, ok)
}

func TestSetAffinity_ReResolvesEveryCall(t *testing.T) {
	ops := fake.NewOps()
	ops.Launch(1, "PathOfExile.exe", "Path of Exile 2")
	h := newHandle(ops, 0)
	mask := affinity.Full(8).Park(2)

	tgt, err := h.SetAffinity(context.Background(), mask)
	require.NoError(t, err)
	assert.Equal(t, 1, tgt.PID)

	// Game restarts under a new PID.
	ops.Kill(1)
	ops.Launch(2, "PathOfExile.exe", "Path of Exile 2")
	tgt, err = h.SetAffinity(context.Background(), mask)
	require.NoError(t, err)
	assert.Equal(t, 2, tgt.PID)

	p, _ := ops.Snapshot(2)
	assert.Equal(t, mask.Bits(), p.Mask)
}

func TestMutations_NoTarget(t *testing.T) {
	h := newHandle(fake.NewOps(), 0)
	_, err := h.SetAffinity(context.Background(), affinity.Full(4))
	assert.ErrorIs(t, err, api.ErrTargetNotFound)
	assert.True(t, process.Gone(err))

	_, err = h.SetPriority(context.Background(), api.PriorityRealtime)
	assert.ErrorIs(t, err, api.ErrTargetNotFound)
}

func TestWaitForLaunch(t *testing.T) {
	ops := fake.NewOps()
	h := newHandle(ops, 0)

	go func() {
		time.Sleep(30 * time.Millisecond)
		ops.Launch(3, "PathOfExile.exe", "Path of Exile 2")
	}()
	tgt, existed, err := h.WaitForLaunch(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, 3, tgt.PID)

	_, existed, err = h.WaitForLaunch(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestWaitForLaunch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := newHandle(fake.NewOps(), 0).WaitForLaunch(ctx, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsResponsive(t *testing.T) {
	ops := fake.NewOps()
	ops.Launch(4, "PathOfExile.exe", "Path of Exile 2")
	h := newHandle(ops, 0)
	tgt, ok := h.FindTarget(context.Background())
	require.True(t, ok)

	assert.True(t, h.IsResponsive(tgt))
	ops.SetHung(4, true)
	assert.False(t, h.IsResponsive(tgt))
	assert.False(t, h.HasExited(tgt))
	ops.Remove(4)
	assert.True(t, h.HasExited(tgt))
}
