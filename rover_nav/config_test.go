package rover_nav

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_DefaultsOnly(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultSearchConfig(), cfg.Search)
	assert.Equal(t, 10.0, cfg.Hz)
	assert.Equal(t, "sqlite", cfg.Journal.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "rover-search", cfg.Tracing.ServiceName)
	assert.Equal(t, 0.1, cfg.Sim.Dt)
	assert.Empty(t, cfg.Waypoints())
	assert.Zero(t, cfg.NavigatorConfig().Start)
}

func TestLoadConfig_JSONFile(t *testing.T) {
	path := writeConfig(t, "rover.json", `{
		"hz": 20,
		"start_state": "search",
		"search": {"turns": 3, "step": 1.5},
		"course": {"waypoints": [
			{"x": 5, "y": 0, "marker_id": 7},
			{"x": -1, "y": 2}
		]},
		"sim": {"markers": [{"id": 7, "x": 7, "y": 0}]},
		"log": {"format": "json"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.Hz)
	assert.Equal(t, 3, cfg.Search.Turns)
	assert.Equal(t, 1.5, cfg.Search.Step)
	assert.Equal(t, 0.2, cfg.Search.StopThreshold, "unset keys keep defaults")
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, []Waypoint{
		{Position: Point2D{X: 5, Y: 0}, MarkerID: 7},
		{Position: Point2D{X: -1, Y: 2}, MarkerID: NoMarker},
	}, cfg.Waypoints())
	require.Len(t, cfg.Sim.Markers, 1)
	assert.Equal(t, SimMarker{ID: 7, X: 7, Y: 0}, cfg.Sim.Markers[0])

	nc := cfg.NavigatorConfig()
	assert.Equal(t, StateSearch, nc.Start)
	assert.Equal(t, cfg.Search, nc.Search)
	assert.Equal(t, cfg.Approach, nc.Approach)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := writeConfig(t, "rover.yaml", `
search:
  turns: 2
traverse:
  stop_threshold: 0.75
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Search.Turns)
	assert.Equal(t, 0.75, cfg.Traverse.StopThreshold)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ROVER_SEARCH_TURNS", "7")
	t.Setenv("ROVER_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.Turns)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"turns":       `{"search": {"turns": 0}}`,
		"step":        `{"search": {"step": -2}}`,
		"hz":          `{"hz": 0}`,
		"start state": `{"start_state": "hover"}`,
		"driver":      `{"journal": {"driver": "mysql"}}`,
		"alpha":       `{"tracker": {"alpha": 1.5}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "bad.json", body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}
