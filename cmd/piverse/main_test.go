package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	persistlog "piverse.ai/internal/persistence/log"
	"piverse.ai/internal/protocol"
	"piverse.ai/internal/sim/behavior"
	"piverse.ai/internal/sim/terrain/heightmap"
	"piverse.ai/internal/sim/tuning"
	"piverse.ai/internal/sim/world"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenIsDeterministic(t *testing.T) {
	a, err := execute(t, "gen", "--terrain-size", "3")
	require.NoError(t, err)
	b, err := execute(t, "gen", "--terrain-size", "3")
	require.NoError(t, err)

	var ga, gb genOutput
	require.NoError(t, json.Unmarshal([]byte(a), &ga))
	require.NoError(t, json.Unmarshal([]byte(b), &gb))
	assert.Equal(t, "3141592653", ga.Segment)
	assert.Equal(t, ga.Creatures, gb.Creatures)
	assert.Equal(t, ga.Shelters, gb.Shelters)
	assert.Equal(t, ga.Collectibles, gb.Collectibles)
	assert.Len(t, ga.Creatures, tuning.Defaults().Population.Creatures)
	assert.Len(t, ga.Behaviors, tuning.Defaults().Population.Behaviors)
	assert.Len(t, ga.Terrain, 9)
}

func TestGenSegmentOverride(t *testing.T) {
	out, err := execute(t, "gen", "--segment", "2718281828")
	require.NoError(t, err)
	var g genOutput
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Equal(t, "2718281828", g.Segment)
	assert.Equal(t, "2718281828-0", g.Collectibles[0].ID)

	_, err = execute(t, "gen", "--segment", "27x8")
	require.Error(t, err)
}

func TestHeightmapCommand(t *testing.T) {
	out, err := execute(t, "heightmap", "--cx", "2", "--cz", "-1", "--res", "9")
	require.NoError(t, err)
	var msg protocol.HeightmapMsg
	require.NoError(t, json.Unmarshal([]byte(out), &msg))
	assert.Equal(t, protocol.TypeHeightmap, msg.Type)
	assert.Equal(t, "2:-1:9", msg.Key)
	assert.Equal(t, heightmap.Synthesize("3141592653", 2, -1, 9), msg.Data)

	out, err = execute(t, "heightmap", "--digits", "4")
	require.NoError(t, err)
	var grid heightmap.Grid
	require.NoError(t, json.Unmarshal([]byte(out), &grid))
	assert.Equal(t, heightmap.FromDigits("3141592653", 4), grid)

	_, err = execute(t, "heightmap", "--mode", "perlin")
	require.Error(t, err)
}

func TestEventsFromJournal(t *testing.T) {
	dir := t.TempDir()
	j := persistlog.NewEventJournal(dir)
	at := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	require.NoError(t, j.WriteEvent(behavior.Event{ID: "e1", CreatureID: "creature-1", Timestamp: at}))
	require.NoError(t, j.WriteEvent(behavior.Event{ID: "e2", CreatureID: "creature-2", Timestamp: at}))
	require.NoError(t, j.Close())

	out, err := execute(t, "events", filepath.Join(dir, "events"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"))

	out, err = execute(t, "events", "--creature", "creature-2", filepath.Join(dir, "events"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	var e behavior.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, "e2", e.ID)

	_, err = execute(t, "events")
	require.Error(t, err)
	_, err = execute(t, "events", filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, configureLogging("debug", "json"))
	require.NoError(t, configureLogging("info", "text"))
	require.Error(t, configureLogging("loud", "text"))
	require.Error(t, configureLogging("info", "xml"))
}

func TestTuningFileFlag(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(p, []byte("population:\n  creatures: 3\n"), 0o644))
	out, err := execute(t, "gen", "--tuning", p)
	require.NoError(t, err)
	var g genOutput
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Len(t, g.Creatures, 3)
}

func TestIsLoopbackRemote(t *testing.T) {
	assert.True(t, isLoopbackRemote("127.0.0.1:5000"))
	assert.True(t, isLoopbackRemote("[::1]:5000"))
	assert.False(t, isLoopbackRemote("10.0.0.2:5000"))
	assert.False(t, isLoopbackRemote("garbage"))
}

func TestAdminRoutes(t *testing.T) {
	w, err := world.New(world.WorldConfig{ID: "adm", Segment: "3141592653", Tuning: tuning.Defaults()})
	require.NoError(t, err)
	mux := http.NewServeMux()
	mountAdmin(mux, w)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"world_id":"adm"`)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "192.168.1.9:4000"
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/v1/snapshot", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
