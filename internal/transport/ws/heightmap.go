package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"piverse.ai/internal/protocol"
	"piverse.ai/internal/sim/terrain/chunks"
)

// HeightmapHandler speaks the worker channel contract: each "request"
// message is answered with one "heightmap" message for the same key.
// The endpoint keeps no session state.
func (s *Server) HeightmapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.pool == nil {
			http.Error(rw, "heightmap worker disabled", http.StatusServiceUnavailable)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reply := s.answerHeightmap(msg)
			if err := writeJSON(conn, reply); err != nil {
				return
			}
		}
	}
}

func (s *Server) answerHeightmap(msg []byte) any {
	if err := s.validator.Validate(protocol.TypeRequest, msg); err != nil {
		s.metrics.Message(protocol.TypeRequest, "rejected")
		return protocol.NewError(protocol.ErrProtoBadRequest, err.Error())
	}
	var m protocol.HeightmapRequestMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		s.metrics.Message(protocol.TypeRequest, "rejected")
		return protocol.NewError(protocol.ErrProtoBadRequest, err.Error())
	}
	s.metrics.Message(protocol.TypeRequest, "ok")
	resp := s.pool.Compute(chunks.Request{
		Key:       m.Key,
		Segment:   m.PiSegment,
		CX:        m.CX,
		CZ:        m.CZ,
		WorldSize: m.WorldSize,
		Res:       m.Res,
	})
	return protocol.HeightmapMsg{
		Type:   protocol.TypeHeightmap,
		Key:    resp.Key,
		Width:  resp.Width,
		Height: resp.Height,
		Data:   resp.Data,
	}
}

