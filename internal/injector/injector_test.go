package injector

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) ConfigPath {
	t.Helper()
	path := filepath.Join(t.TempDir(), "factory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return ConfigPath(path)
}

const testConfig = `
log:
  level: error
simulation:
  seed: 42
server:
  listen_addr: 127.0.0.1:0
  shutdown_timeout: 1s
`

func TestInitializeApp(t *testing.T) {
	app, cleanup, err := InitializeApp(writeConfig(t, testConfig))
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, app.Engine)
	assert.NotNil(t, app.Server)
	assert.Equal(t, int64(42), app.Config.Simulation.Seed)
}

func TestInitializeAppRejectsBadConfig(t *testing.T) {
	_, _, err := InitializeApp(writeConfig(t, "simulation:\n  unknown_key: 1\n"))
	assert.Error(t, err)
}

func TestMetricsExposed(t *testing.T) {
	app, cleanup, err := InitializeApp(writeConfig(t, testConfig))
	require.NoError(t, err)
	defer cleanup()

	app.Engine.Step()

	ts := httptest.NewServer(app.Server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "factory_tick_duration_seconds")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetricsDisabled(t *testing.T) {
	app, cleanup, err := InitializeApp(writeConfig(t, testConfig+"metrics:\n  enabled: false\n"))
	require.NoError(t, err)
	defer cleanup()

	ts := httptest.NewServer(app.Server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAppRunStopsOnCancel(t *testing.T) {
	app, cleanup, err := InitializeApp(writeConfig(t, testConfig))
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	assert.NoError(t, app.Run(ctx))
	assert.False(t, app.Server.GetStats().Running)
}
