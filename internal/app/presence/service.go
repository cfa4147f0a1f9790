// Package presence routes decoded room messages to handlers and fans the
// resulting events out to room members.
package presence

import (
	"sync"
	"time"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Service runs handlers one at a time. mu is held for a whole handler turn,
// so reading the room and broadcasting to it is atomic with respect to
// joins, leaves and evictions. Sends never block inside a turn.
type Service struct {
	Registry *app.Registry
	Policy   app.Policy
	// ChatLimiter throttles chat frames per connection; nil disables it.
	ChatLimiter *app.RateLimiter
	// AnnounceJoins also sends a server chat line to the room on join.
	AnnounceJoins bool
	Clock         func() time.Time

	mu sync.Mutex
	// pending holds connections to evict once the current turn's sends are done.
	pending []evictRequest
}

type evictRequest struct {
	id     core.ConnID
	reason string
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Connect registers a new transport session.
func (s *Service) Connect(sig core.SignalConnection) core.ConnID {
	id := s.Registry.Insert(sig)
	log.Info().Str("module", "presence").Str("conn", string(id)).Msg("connected")
	return id
}

// Touch records activity seen below the message layer, such as transport pongs.
func (s *Service) Touch(id core.ConnID) {
	s.Registry.Touch(id)
}

// HandleFrame decodes and dispatches one inbound frame. Bad frames are
// logged and dropped; the connection stays open.
func (s *Service) HandleFrame(id core.ConnID, data []byte) {
	msg, err := protocol.Decode(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Registry.Touch(id) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "presence").Str("conn", string(id)).Msg("dropping frame")
		return
	}
	s.dispatch(id, msg)
	s.flushPending()
}

func (s *Service) dispatch(id core.ConnID, msg protocol.Inbound) {
	switch m := msg.(type) {
	case *protocol.Join:
		s.handleJoin(id, m)
	case *protocol.Leave:
		s.handleLeave(id, m)
	case *protocol.Chat:
		s.handleChat(id, m)
	case *protocol.PlayerMove:
		s.handleMove(id, m)
	case *protocol.PlayerOnStage:
		s.handleOnStage(id, m)
	case *protocol.SignalRelay:
		s.handleSignal(id, m)
	case *protocol.LivenessReply:
		// activity already recorded
	default:
		log.Warn().Str("module", "presence").Str("conn", string(id)).Msgf("no handler for %T", msg)
	}
}

// Disconnect is the close/error path of a transport: the connection leaves
// every room, peers are told, and the transport is closed.
func (s *Service) Disconnect(id core.ConnID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(id, reason)
	s.flushPending()
}

var pingFrame = protocol.MustEncode(protocol.Ping)

// Ping queues a liveness ping. A full queue is handled by the backpressure
// policy like any other send.
func (s *Service) Ping(id core.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Registry.Get(id)
	if !ok {
		return false
	}
	sent := s.deliver(c, pingFrame)
	s.flushPending()
	return sent
}

// EvictStale evicts the connection if it has been silent since before cutoff.
// The check is repeated under the turn lock so a late reply still saves it.
func (s *Service) EvictStale(id core.ConnID, cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Registry.Get(id)
	if !ok || !c.LastLiveness.Before(cutoff) {
		return false
	}
	s.evictLocked(id, "heartbeat timeout")
	s.flushPending()
	return true
}

// Shutdown closes every live connection, telling their rooms.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.Registry.All() {
		s.evictLocked(c.ID, "shutdown")
	}
	s.flushPending()
}

func (s *Service) evictLocked(id core.ConnID, reason string) {
	gone, ok := s.Registry.Remove(id)
	if !ok {
		return
	}
	for _, slug := range gone.Rooms {
		s.broadcast(s.Registry.MembersOf(slug), id, protocol.NewPlayerLeft(gone.Player.Username, slug))
	}
	if s.ChatLimiter != nil {
		s.ChatLimiter.Forget(id)
	}
	if gone.Signal != nil {
		gone.Signal.Close()
	}
	log.Info().
		Str("module", "presence").
		Str("conn", string(id)).
		Str("username", gone.Player.Username).
		Int("rooms", len(gone.Rooms)).
		Str("reason", reason).
		Msg("evicted")
}

func (s *Service) flushPending() {
	for len(s.pending) > 0 {
		req := s.pending[0]
		s.pending = s.pending[1:]
		s.evictLocked(req.id, req.reason)
	}
	s.pending = nil
}
