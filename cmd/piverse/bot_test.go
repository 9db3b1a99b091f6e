package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piverse.ai/internal/protocol"
	"piverse.ai/internal/sim/tuning"
	"piverse.ai/internal/sim/world"
	"piverse.ai/internal/transport/ws"
)

func TestBotAgainstLiveServer(t *testing.T) {
	tn := tuning.Defaults()
	tn.TickRateHz = 50
	w, err := world.New(world.WorldConfig{ID: "bot", Segment: "3141592653", Tuning: tn})
	require.NoError(t, err)
	v, err := protocol.NewValidator()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", ws.NewServer(w, v).Handler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := &botConfig{
		url:       "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws",
		name:      "walker",
		mode:      protocol.GameModeSurvival,
		moveEvery: 1,
		step:      1,
		maxObs:    10,
	}
	st, err := runBot(ctx, cfg, log.Default().WithPrefix("bot"))
	require.NoError(t, err)
	assert.Equal(t, "P000001", st.PlayerID)
	assert.Equal(t, protocol.GameModeSurvival, st.Mode)
	assert.Equal(t, 10, st.Obs)
	assert.Equal(t, 10, st.Moves)
	assert.Positive(t, st.Chunks)

	cancel()
	<-done
}

func TestBotDialFailure(t *testing.T) {
	cfg := &botConfig{url: "ws://127.0.0.1:1/v1/ws", maxObs: 1}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := runBot(ctx, cfg, log.Default())
	require.Error(t, err)
}
