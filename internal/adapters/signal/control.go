package signal

import (
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/gorilla/websocket"
)

// setupControlHandlers counts websocket-level pings and pongs as activity,
// next to the JSON pong replies the heartbeat expects.
func (ctl *SignalWSController) setupControlHandlers(id core.ConnID, ws *websocket.Conn) {
	ws.SetPongHandler(func(string) error {
		ctl.Presence.Touch(id)
		return nil
	})
	ws.SetPingHandler(func(appData string) error {
		ctl.Presence.Touch(id)
		err := ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(ctl.opts.WriteTimeout))
		if err == nil || errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})
}

// isExpectedCloseError reports errors that only mean the peer or we already hung up.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
