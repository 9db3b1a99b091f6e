package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"piverse.ai/internal/observability"
	"piverse.ai/internal/protocol"
	"piverse.ai/internal/sim/terrain/chunks"
	"piverse.ai/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	joinTimeout      = 5 * time.Second

	defaultQueue = 8
	maxQueue     = 64
)

// WorldPort is the part of *world.World a session talks to.
type WorldPort interface {
	Join() chan<- world.JoinRequest
	Leave() chan<- string
	Inbox() chan<- world.ActionEnvelope
}

// Computer answers one heightmap request synchronously. *chunks.Pool
// satisfies it.
type Computer interface {
	Compute(req chunks.Request) chunks.Response
}

type Server struct {
	world     WorldPort
	validator *protocol.Validator
	pool      Computer
	metrics   *observability.SessionMetrics
	log       *log.Logger

	upgrader websocket.Upgrader
}

type Option func(*Server)

func WithPool(p Computer) Option                         { return func(s *Server) { s.pool = p } }
func WithMetrics(m *observability.SessionMetrics) Option { return func(s *Server) { s.metrics = m } }
func WithLogger(l *log.Logger) Option                    { return func(s *Server) { s.log = l } }

func NewServer(w WorldPort, v *protocol.Validator, opts ...Option) *Server {
	s := &Server{
		world:     w,
		validator: v,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = log.Default().WithPrefix("ws")
	}
	return s
}

// Handler serves one player session: HELLO, then actions in and OBS out.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, out := s.handshake(r.Context(), conn)
		if playerID == "" {
			return
		}
		s.metrics.Opened()
		defer s.metrics.Closed()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Errors from the reader share the writer so the conn has one writer.
		errs := make(chan []byte, 8)
		writerDone := make(chan struct{})

		go func() {
			defer close(writerDone)
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-errs:
				case b = <-out:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			act, perr := s.decodeAction(msg)
			if perr != nil {
				s.metrics.Message(act.Type, "rejected")
				if b, err := json.Marshal(perr); err == nil {
					select {
					case errs <- b:
					default:
					}
				}
				continue
			}
			s.metrics.Message(act.Type, "ok")
			select {
			case s.world.Inbox() <- world.ActionEnvelope{PlayerID: playerID, Act: act}:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}

		cancel()
		<-writerDone
		s.leave(playerID)
	}
}

// leave gives up after joinTimeout so a stopped world cannot pin the
// handler.
func (s *Server) leave(playerID string) {
	t := time.NewTimer(joinTimeout)
	defer t.Stop()
	select {
	case s.world.Leave() <- playerID:
	case <-t.C:
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (playerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.metrics.Message(base.Type, "rejected")
		closeWith(conn, protocol.NewError(protocol.ErrProtoBadRequest, "expected HELLO"))
		return "", nil
	}
	if err := s.validator.Validate(protocol.TypeHello, msg); err != nil {
		s.metrics.Message(protocol.TypeHello, "rejected")
		closeWith(conn, protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if !protocol.Compatible(hello.ProtocolVersion) {
		s.metrics.Message(protocol.TypeHello, "bad_version")
		closeWith(conn, protocol.NewError(protocol.ErrBadVersion,
			"unsupported protocol_version "+hello.ProtocolVersion+", want "+protocol.VersionConstraint))
		return "", nil
	}
	s.metrics.Message(protocol.TypeHello, "ok")
	if protocol.Newer(hello.ProtocolVersion) {
		s.log.Debug("client speaks a newer minor version", "client", hello.ProtocolVersion, "server", protocol.Version)
	}
	name := strings.TrimSpace(hello.PlayerName)
	if name == "" {
		name = "player"
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = defaultQueue
	}
	if maxQ > maxQueue {
		maxQ = maxQueue
	}
	out = make(chan []byte, maxQ)

	respCh := make(chan world.JoinResponse, 1)
	jctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()
	select {
	case s.world.Join() <- world.JoinRequest{Name: name, GameMode: hello.GameMode, Out: out, Resp: respCh}:
	case <-jctx.Done():
		closeWith(conn, protocol.NewError(protocol.ErrInternal, "world unavailable"))
		return "", nil
	}
	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-jctx.Done():
		// The join may still land; make sure the player does not linger.
		go func() {
			select {
			case r := <-respCh:
				s.leave(r.Welcome.PlayerID)
			case <-time.After(joinTimeout):
			}
		}()
		closeWith(conn, protocol.NewError(protocol.ErrInternal, "world unavailable"))
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.leave(resp.Welcome.PlayerID)
		return "", nil
	}
	s.log.Debug("session open", "player", resp.Welcome.PlayerID, "name", name, "queue", maxQ)
	return resp.Welcome.PlayerID, out
}

// decodeAction validates one inbound session message. The returned Action
// carries Type even on failure so callers can label metrics.
func (s *Server) decodeAction(msg []byte) (world.Action, *protocol.ErrorMsg) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		e := protocol.NewError(protocol.ErrProtoBadRequest, "malformed json")
		return world.Action{}, &e
	}
	act := world.Action{Type: base.Type}
	switch base.Type {
	case protocol.TypeMove, protocol.TypeMoveTo, protocol.TypeHarvest:
	default:
		e := protocol.NewError(protocol.ErrProtoBadRequest, "unsupported message type "+base.Type)
		return act, &e
	}
	if !protocol.Compatible(base.ProtocolVersion) {
		e := protocol.NewError(protocol.ErrBadVersion, "unsupported protocol_version "+base.ProtocolVersion)
		return act, &e
	}
	if err := s.validator.Validate(base.Type, msg); err != nil {
		e := protocol.NewError(protocol.ErrProtoBadRequest, err.Error())
		return act, &e
	}
	var derr error
	switch base.Type {
	case protocol.TypeMove:
		var m protocol.MoveMsg
		derr = json.Unmarshal(msg, &m)
		act.DX, act.DZ = m.DX, m.DZ
	case protocol.TypeMoveTo:
		var m protocol.MoveToMsg
		derr = json.Unmarshal(msg, &m)
		act.X, act.Z = m.X, m.Z
	case protocol.TypeHarvest:
		var m protocol.HarvestMsg
		derr = json.Unmarshal(msg, &m)
		act.FoodID = m.FoodID
	}
	if derr != nil {
		e := protocol.NewError(protocol.ErrProtoBadRequest, derr.Error())
		return act, &e
	}
	return act, nil
}

func closeWith(conn *websocket.Conn, e protocol.ErrorMsg) {
	_ = writeJSON(conn, e)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, e.Code),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
