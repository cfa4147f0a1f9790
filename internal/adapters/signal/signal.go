package signal

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Presence is the room core as seen by the transport.
type Presence interface {
	Connect(sig core.SignalConnection) core.ConnID
	HandleFrame(id core.ConnID, data []byte)
	Disconnect(id core.ConnID, reason string)
	Touch(id core.ConnID)
}

type Options struct {
	ReadLimit      int64
	SendBuffer     int
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type SignalWSController struct {
	Presence Presence
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(p Presence, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &SignalWSController{
		Presence: p,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     newOriginChecker(opts.AllowedOrigins),
		},
	}
}

// WsSignalConn is the outbound side of one websocket. Frames are queued in a
// bounded channel and written by writePump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(conn *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: conn,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Close stops accepting frames. writePump flushes what is queued, sends a
// close frame and releases the socket.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	client := c.GetString("client_token")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("client", client).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	id := ctl.Presence.Connect(conn)
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("client", client).Str("remote", c.Request.RemoteAddr).Msg("new WS connection")

	ctl.setupControlHandlers(id, ws)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(id, conn)
	go ctl.readPump(ctx, cancel, id, conn)
}
