package presence

import (
	"fmt"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/dkeye/Lobby/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (s *Service) handleJoin(id core.ConnID, m *protocol.Join) {
	if err := m.Room.Validate(); err != nil {
		log.Warn().Err(err).Str("module", "presence").Str("conn", string(id)).Msg("bad join room")
		return
	}

	// The display name is kept byte for byte; clients look peers up by the exact string they sent.
	self, existing, joined := s.Registry.Join(id, m.Room, m.Username)
	if !joined {
		log.Debug().Str("module", "presence").Str("conn", string(id)).Str("room", string(m.Room)).Msg("join ignored")
		return
	}

	if s.AnnounceJoins {
		notice := protocol.NewChatNotice(
			protocol.ServerName,
			fmt.Sprintf("%s joined %s", self.Player.Username, m.Room),
			nil,
			s.now(),
		)
		s.broadcast(existing, id, notice)
	}
	s.broadcast(existing, id, protocol.NewPlayerJoined(id, self.Player.Username, self.Player.PositionOrOrigin()))

	players := make([]core.PlayerDTO, 0, len(existing))
	for _, c := range existing {
		players = append(players, c.DTO())
	}
	s.sendTo(self, protocol.NewExistingPlayers(players))
}

func (s *Service) handleLeave(id core.ConnID, m *protocol.Leave) {
	self, ok := s.Registry.Get(id)
	if !ok {
		return
	}
	if s.Registry.Leave(id, m.Room) {
		s.broadcast(s.Registry.MembersOf(m.Room), id, protocol.NewPlayerLeft(self.Player.Username, m.Room))
	} else {
		log.Debug().Str("module", "presence").Str("conn", string(id)).Str("room", string(m.Room)).Msg("leave for room not joined")
	}
	s.sendTo(self, protocol.LeftAck)
}

func (s *Service) handleChat(id core.ConnID, m *protocol.Chat) {
	self, ok := s.memberOf(id, m.Room)
	if !ok {
		return
	}
	if s.ChatLimiter != nil && !s.ChatLimiter.Allow(id) {
		log.Warn().Str("module", "presence").Str("conn", string(id)).Str("room", string(m.Room)).Msg("chat rate limited")
		return
	}
	notice := protocol.NewChatNotice(self.Player.Username, m.Content, m.SentTime, s.now())
	s.broadcast(s.Registry.MembersOf(m.Room), id, notice)
}

// handleMove relays positions as-is; smoothing and throttling are up to the sender.
func (s *Service) handleMove(id core.ConnID, m *protocol.PlayerMove) {
	self, ok := s.Registry.SetPosition(id, *m.Position)
	if !ok || !self.In(m.Room) {
		return
	}
	s.broadcast(s.Registry.MembersOf(m.Room), id, protocol.NewPlayerMoved(self.Player.Username, m.Room, *m.Position))
}

func (s *Service) handleOnStage(id core.ConnID, m *protocol.PlayerOnStage) {
	self, ok := s.Registry.SetOnStage(id, *m.OnStage)
	if !ok || !self.In(m.Room) {
		return
	}
	s.broadcast(s.Registry.MembersOf(m.Room), id, protocol.NewStageChanged(self.Player.Username, m.Room, *m.OnStage))
}

// handleSignal forwards the payload to one peer without looking at it.
func (s *Service) handleSignal(id core.ConnID, m *protocol.SignalRelay) {
	self, ok := s.Registry.Get(id)
	if !ok {
		return
	}

	var (
		target app.Connection
		found  bool
	)
	if m.TargetID != "" {
		target, found = s.Registry.Get(m.TargetID)
		found = found && target.In(m.Room)
	} else {
		target, found = s.Registry.FindInRoom(m.Room, m.TargetUsername)
	}
	if !found || target.ID == id {
		log.Debug().Str("module", "presence").Str("conn", string(id)).Str("room", string(m.Room)).Msg("signal target not found")
		return
	}
	s.sendTo(target, protocol.NewSignalForward(id, self.Player.Username, m.Signal))
}

func (s *Service) memberOf(id core.ConnID, slug domain.RoomSlug) (app.Connection, bool) {
	self, ok := s.Registry.Get(id)
	if !ok {
		return app.Connection{}, false
	}
	if !self.In(slug) {
		log.Debug().Str("module", "presence").Str("conn", string(id)).Str("room", string(slug)).Msg("not a member")
		return app.Connection{}, false
	}
	return self, true
}
