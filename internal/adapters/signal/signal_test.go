package signal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWsSignalConnTrySend(t *testing.T) {
	c := newWsSignalConn(nil, 2)

	assert.NoError(t, c.TrySend(core.Frame("a")))
	assert.NoError(t, c.TrySend(core.Frame("b")))
	assert.ErrorIs(t, c.TrySend(core.Frame("c")), core.ErrBackpressure)

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.TrySend(core.Frame("d")), core.ErrClosed)

	var got []string
	for f := range c.send {
		got = append(got, string(f))
	}
	assert.Equal(t, []string{"a", "b"}, got, "queued frames survive close for flushing")
}

func TestWritePumpFlushesQueueThenCloses(t *testing.T) {
	ctl := NewSignalWSController(nil, Options{WriteTimeout: time.Second})
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := ctl.upgrader.Upgrade(w, r, nil)
		if err != nil {
			close(done)
			return
		}
		c := newWsSignalConn(ws, 8)
		for _, f := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
			_ = c.TrySend(core.Frame(f))
		}
		c.Close()
		ctl.writePump("c1", c)
		close(done)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var got []string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
		got = append(got, string(data))
	}
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, got)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writePump did not return")
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "empty list allows all", allowed: nil, origin: "http://evil.example", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://any.example", want: true},
		{name: "exact match", allowed: []string{"https://lobby.example"}, origin: "https://lobby.example", want: true},
		{name: "case insensitive", allowed: []string{"https://Lobby.Example"}, origin: "HTTPS://lobby.example", want: true},
		{name: "other host", allowed: []string{"https://lobby.example"}, origin: "https://evil.example", want: false},
		{name: "missing origin", allowed: []string{"https://lobby.example"}, origin: "", want: false},
		{name: "invalid entries ignored", allowed: []string{"not a url", "https://lobby.example"}, origin: "https://lobby.example", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := newOriginChecker(tt.allowed)
			r := httptest.NewRequest("GET", "/api/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, check(r))
		})
	}
}

func TestReadErrorReason(t *testing.T) {
	assert.Equal(t, "frame too large", readErrorReason(websocket.ErrReadLimit))
	assert.Equal(t, "closed", readErrorReason(&websocket.CloseError{Code: websocket.CloseGoingAway}))
	assert.Equal(t, "error", readErrorReason(errors.New("tls: bad record MAC")))
}
