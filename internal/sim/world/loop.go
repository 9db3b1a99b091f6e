package world

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"piverse.ai/internal/errutil"
	"piverse.ai/internal/protocol"
	"piverse.ai/internal/sim/terrain/chunks"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering as
// Run. It is meant for tests and offline tools.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(joins, leaves, actions)
	return tick, w.stateDigest(tick)
}

func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	now := w.now()
	entry := TickLogEntry{Tick: nowTick}

	w.deliverHeightmaps()

	for _, id := range leaves {
		if _, ok := w.players[id]; ok {
			w.handleLeave(id)
			entry.Leaves = append(entry.Leaves, id)
		}
	}
	for _, req := range joins {
		resp := w.joinPlayer(req)
		if req.Resp != nil {
			req.Resp <- resp
		}
		entry.Joins = append(entry.Joins, RecordedJoin{PlayerID: resp.Welcome.PlayerID, Name: req.Name})
	}

	// Actions apply in inbox order; the session identity is trusted.
	for _, env := range actions {
		p := w.players[env.PlayerID]
		if p == nil {
			continue
		}
		entry.Actions = append(entry.Actions, RecordedAction{PlayerID: env.PlayerID, Act: env.Act})
		if h, ok := w.applyAction(p, env.Act, now); ok {
			entry.Harvests = append(entry.Harvests, h)
		}
	}
	for _, id := range w.order {
		p := w.players[id]
		w.clients[id].Chunks.Update(p.X, p.Z)
	}

	w.systemCreatures()
	if every := uint64(w.tune.BehaviorEveryTicks); nowTick%every == 0 {
		w.sim.Update(w.creaturePositions())
	}
	entry.Pickups = w.systemCollect()
	w.systemShelter()
	w.systemSurvivalClock()
	if every := uint64(w.tune.WeatherEveryTicks); nowTick%every == 0 {
		w.systemWeather(nowTick)
	}
	if every := uint64(w.tune.SurvivalEveryTicks); nowTick != 0 && nowTick%every == 0 {
		w.systemSurvival()
	}

	for _, id := range w.order {
		cl := w.clients[id]
		if cl == nil || cl.Out == nil {
			continue
		}
		obs := w.buildObs(w.players[id], cl, nowTick)
		b, err := json.Marshal(obs)
		if err != nil {
			continue
		}
		w.publish(cl, b)
	}

	if w.tickLogger != nil {
		entry.Digest = w.stateDigest(nowTick)
		if err := w.tickLogger.WriteTick(entry); err != nil {
			errutil.LogError(w.logger, "tick log write", err)
		}
	}

	if w.snapshotSink != nil && nowTick != 0 {
		if every := uint64(w.tune.SnapshotEveryTicks); nowTick%every == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	nextTick := w.tick.Add(1)
	w.storeMetrics(nextTick, float64(time.Since(stepStart).Microseconds())/1000.0)
}

// deliverHeightmaps hands every finished heightmap to every session. A
// manager only accepts keys it has pending, so no routing is needed.
func (w *World) deliverHeightmaps() {
	deliver := func(resp chunks.Response) {
		k, ok := chunks.ParseKey(resp.Key)
		if !ok {
			return
		}
		for _, id := range w.order {
			cl := w.clients[id]
			if cl.Chunks.Deliver(resp) {
				cl.Fresh = append(cl.Fresh, k)
			}
		}
	}
	for _, r := range w.inline {
		deliver(r)
	}
	w.inline = w.inline[:0]
	for {
		select {
		case r := <-w.replies:
			deliver(r)
		default:
			return
		}
	}
}

func (w *World) joinPlayer(req JoinRequest) JoinResponse {
	w.nextPlayer++
	id := fmt.Sprintf("P%06d", w.nextPlayer)
	mode := req.GameMode
	if !protocol.ValidGameMode(mode) {
		mode = w.tune.GameMode
	}
	p := &Player{
		ID:     id,
		Name:   req.Name,
		Mode:   mode,
		Health: maxPlayerStat,
		Energy: maxPlayerStat,
		Hunger: maxPlayerStat,
	}
	w.players[id] = p
	w.order = append(w.order, id)
	w.clients[id] = &clientState{
		Out:    req.Out,
		Chunks: newManager(w),
	}
	w.logger.Info("player joined", "player", id, "name", req.Name, "mode", mode)
	params := w.Params()
	params.GameMode = mode
	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        id,
		WorldParams:     params,
	}}
}

func (w *World) handleLeave(id string) {
	delete(w.players, id)
	delete(w.clients, id)
	for i, o := range w.order {
		if o == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.logger.Info("player left", "player", id)
}

func (w *World) storeMetrics(tick uint64, stepMS float64) {
	m := WorldMetrics{
		Tick:      tick,
		Players:   len(w.players),
		Creatures: len(w.creatures),
		Patterns:  len(w.sim.ActivePatterns()),
		StepMS:    stepMS,
	}
	for _, cl := range w.clients {
		m.PendingChunks += len(cl.Chunks.Pending())
		m.ReadyChunks += cl.Chunks.ReadyCount()
	}
	w.metrics.Store(m)
}

// publish queues one OBS for a session. Heightmaps and events leave the
// client state only once a message carrying them is queued; whatever an
// evicted message carried is folded into the next OBS.
func (w *World) publish(cl *clientState, b []byte) {
	evicted, sent := sendLatest(cl.Out, b)
	if sent {
		cl.Fresh = cl.Fresh[:0]
		cl.Pending = cl.Pending[:0]
	}
	if evicted != nil {
		requeue(cl, evicted)
	}
}

// obsCarry is the part of an OBS that must not be lost with it.
type obsCarry struct {
	Events []protocol.Event `json:"events"`
	Chunks []struct {
		Key string `json:"key"`
	} `json:"chunks"`
}

func requeue(cl *clientState, b []byte) {
	var c obsCarry
	if err := json.Unmarshal(b, &c); err != nil {
		return
	}
	var keys []chunks.Key
	for _, ch := range c.Chunks {
		if k, ok := chunks.ParseKey(ch.Key); ok {
			keys = append(keys, k)
		}
	}
	cl.Fresh = append(keys, cl.Fresh...)
	cl.Pending = append(c.Events, cl.Pending...)
}

// sendLatest enqueues b without blocking, evicting the oldest queued message
// when ch is full. It returns the evicted message and whether b was queued.
func sendLatest(ch chan []byte, b []byte) (evicted []byte, sent bool) {
	select {
	case ch <- b:
		return nil, true
	default:
	}
	select {
	case evicted = <-ch:
	default:
	}
	select {
	case ch <- b:
		return evicted, true
	default:
		return evicted, false
	}
}
