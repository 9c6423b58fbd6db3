package control_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/coreparker/control"
)

func TestDebugProbes_StateAndHTTP(t *testing.T) {
	r := newRig(t, 8, 2, 1)
	wd := newWatchdog(r, time.Hour)
	dp := control.NewDebugProbes()
	control.RegisterStateProbes(dp, r.ctrl, r.tunable, wd)

	state := dp.DumpState()
	assert.Equal(t, "idle", state["state"])
	assert.Equal(t, "11111100", state["mask.loading"])
	assert.Equal(t, "11111110", state["mask.idle"])
	assert.Equal(t, false, state["realtime"])
	assert.Contains(t, state, "platform.cpus")

	reg := prometheus.NewRegistry()
	control.NewMetrics(reg).LoadState.Set(1)
	srv := httptest.NewServer(control.NewHTTPHandler(reg, dp))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "idle", body["state"])

	resp2, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	raw, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "coreparker_controller_loading 1")
}
