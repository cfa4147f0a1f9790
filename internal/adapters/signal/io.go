package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// writePump writes queued frames until the queue is closed, then sends a
// close frame. readPump closes the queue on exit, so this always ends.
func (ctl *SignalWSController) writePump(id core.ConnID, c *WsSignalConn) {
	defer func() {
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("writePump close")
		}
	}()

	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("writePump set deadline")
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			if !isExpectedCloseError(err) {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("writePump write error")
			}
			return
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("writePump channel closed")
}

// readPump feeds inbound frames to the room core in arrival order. Any read
// error ends the session through the regular disconnection path.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, id core.ConnID, c *WsSignalConn) {
	reason := "closed"
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Str("reason", reason).Msg("readPump closing")
		ctl.Presence.Disconnect(id, reason)
		c.Close()
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			reason = "shutdown"
			return
		default:
		}
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			reason = readErrorReason(err)
			if reason == "error" {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
			}
			return
		}
		if mt != websocket.TextMessage {
			log.Warn().Str("module", "signal").Str("conn", string(id)).Int("message_type", mt).Msg("ignoring non-text frame")
			continue
		}
		ctl.Presence.HandleFrame(id, data)
	}
}

func readErrorReason(err error) string {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		return "frame too large"
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return "closed"
	case isExpectedCloseError(err):
		return "closed"
	default:
		return "error"
	}
}
