package presence

import (
	"errors"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/protocol"
	"github.com/rs/zerolog/log"
)

// sendTo delivers one message to one connection.
func (s *Service) sendTo(c app.Connection, v any) {
	f, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "presence").Msg("encode")
		return
	}
	s.deliver(c, f)
}

// broadcast fans v out to members, skipping except.
func (s *Service) broadcast(members []app.Connection, except core.ConnID, v any) {
	if len(members) == 0 {
		return
	}
	f, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "presence").Msg("encode")
		return
	}
	sent := 0
	for _, m := range members {
		if m.ID == except {
			continue
		}
		if s.deliver(m, f) {
			sent++
		}
	}
	log.Debug().Str("module", "presence").Str("from", string(except)).Int("sent_to", sent).Msg("broadcast result")
}

func (s *Service) deliver(c app.Connection, f core.Frame) bool {
	if c.Signal == nil {
		return false
	}
	err := c.Signal.TrySend(f)
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, core.ErrBackpressure):
		action := app.KickMember
		if s.Policy != nil {
			action = s.Policy.OnBackPressure(c.ID)
		}
		if action == app.KickMember {
			s.pending = append(s.pending, evictRequest{id: c.ID, reason: "send buffer full"})
		}
		log.Warn().Str("module", "presence").Str("conn", string(c.ID)).Int("action", int(action)).Msg("backpressure")
	default:
		s.pending = append(s.pending, evictRequest{id: c.ID, reason: "send failed"})
		log.Debug().Err(err).Str("module", "presence").Str("conn", string(c.ID)).Msg("send failed")
	}
	return false
}
