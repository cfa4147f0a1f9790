// Package protocol defines the JSON frames exchanged with room clients.
// Every frame carries a "type" discriminator.
package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
)

const (
	TypeJoin            = "join"
	TypeLeave           = "leave"
	TypeChat            = "chat"
	TypePlayerMove      = "player_move"
	TypePlayerOnStage   = "player_on_stage"
	TypeSignal          = "rtc_signal"
	TypePong            = "pong"
	TypePing            = "ping"
	TypePlayerJoined    = "player_joined"
	TypePlayerLeft      = "player_left"
	TypeExistingPlayers = "existing_players"
	TypeLeft            = "left"
)

// ServerName is the username used for messages the server authors itself.
const ServerName = "Server"

// Inbound is the closed set of messages a client may send.
type Inbound interface {
	inbound()
}

type Join struct {
	Room     domain.RoomSlug `json:"roomslug" validate:"required,max=64"`
	Username string          `json:"username" validate:"required"`
}

type Leave struct {
	Room     domain.RoomSlug `json:"roomslug" validate:"required,max=64"`
	Username string          `json:"username"`
}

type Chat struct {
	Room     domain.RoomSlug `json:"roomslug" validate:"required,max=64"`
	Username string          `json:"username"`
	Content  string          `json:"content" validate:"required"`
	// SentTime is echoed to peers untouched; its shape is up to the client.
	SentTime json.RawMessage `json:"sentTime,omitempty"`
}

type PlayerMove struct {
	Room     domain.RoomSlug  `json:"roomslug" validate:"required,max=64"`
	Username string           `json:"username"`
	Position *domain.Position `json:"position" validate:"required"`
}

type PlayerOnStage struct {
	Room     domain.RoomSlug `json:"roomslug" validate:"required,max=64"`
	Username string          `json:"username"`
	OnStage  *bool           `json:"onStage" validate:"required"`
}

// SignalRelay carries an opaque handshake payload for one peer.
// TargetID, when set, wins over TargetUsername.
type SignalRelay struct {
	Room           domain.RoomSlug `json:"roomslug" validate:"required,max=64"`
	Username       string          `json:"username"`
	TargetUsername string          `json:"targetUsername" validate:"required_without=TargetID"`
	TargetID       core.ConnID     `json:"targetId,omitempty" validate:"omitempty,uuid"`
	Signal         json.RawMessage `json:"signal" validate:"required"`
}

type LivenessReply struct{}

func (*Join) inbound()          {}
func (*Leave) inbound()         {}
func (*Chat) inbound()          {}
func (*PlayerMove) inbound()    {}
func (*PlayerOnStage) inbound() {}
func (*SignalRelay) inbound()   {}
func (*LivenessReply) inbound() {}

// Outbound frames.

type PlayerJoined struct {
	Type     string          `json:"type"`
	ID       core.ConnID     `json:"id"`
	Username string          `json:"username"`
	Position domain.Position `json:"position"`
}

func NewPlayerJoined(id core.ConnID, username string, pos domain.Position) PlayerJoined {
	return PlayerJoined{Type: TypePlayerJoined, ID: id, Username: username, Position: pos}
}

type PlayerLeft struct {
	Type     string          `json:"type"`
	Username string          `json:"username"`
	Room     domain.RoomSlug `json:"roomslug"`
}

func NewPlayerLeft(username string, room domain.RoomSlug) PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft, Username: username, Room: room}
}

type ExistingPlayers struct {
	Type    string           `json:"type"`
	Players []core.PlayerDTO `json:"players"`
}

func NewExistingPlayers(players []core.PlayerDTO) ExistingPlayers {
	if players == nil {
		players = []core.PlayerDTO{}
	}
	return ExistingPlayers{Type: TypeExistingPlayers, Players: players}
}

type ChatNotice struct {
	Type     string          `json:"type"`
	Content  string          `json:"content"`
	Username string          `json:"username"`
	Time     json.RawMessage `json:"time"`
	Sender   string          `json:"sender"`
}

// NewChatNotice stamps the message with sentTime when the client gave one, now otherwise.
// null, false, "" and 0 count as not given.
func NewChatNotice(username, content string, sentTime json.RawMessage, now time.Time) ChatNotice {
	stamp := sentTime
	if isFalsy(stamp) {
		stamp, _ = now.UTC().MarshalJSON()
	}
	return ChatNotice{
		Type:     TypeChat,
		Content:  content,
		Username: username,
		Time:     stamp,
		Sender:   username,
	}
}

func isFalsy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", `""`:
		return true
	}
	if v[0] == '-' || (v[0] >= '0' && v[0] <= '9') {
		f, err := strconv.ParseFloat(string(v), 64)
		return err == nil && f == 0
	}
	return false
}

type PlayerMoved struct {
	Type     string          `json:"type"`
	Username string          `json:"username"`
	Room     domain.RoomSlug `json:"roomslug"`
	Position domain.Position `json:"position"`
}

func NewPlayerMoved(username string, room domain.RoomSlug, pos domain.Position) PlayerMoved {
	return PlayerMoved{Type: TypePlayerMove, Username: username, Room: room, Position: pos}
}

type StageChanged struct {
	Type     string          `json:"type"`
	Username string          `json:"username"`
	Room     domain.RoomSlug `json:"roomslug"`
	OnStage  bool            `json:"onStage"`
}

func NewStageChanged(username string, room domain.RoomSlug, onStage bool) StageChanged {
	return StageChanged{Type: TypePlayerOnStage, Username: username, Room: room, OnStage: onStage}
}

type SignalForward struct {
	Type     string          `json:"type"`
	ID       core.ConnID     `json:"id"`
	Username string          `json:"username"`
	Signal   json.RawMessage `json:"signal"`
}

func NewSignalForward(from core.ConnID, username string, signal json.RawMessage) SignalForward {
	return SignalForward{Type: TypeSignal, ID: from, Username: username, Signal: signal}
}

type Control struct {
	Type string `json:"type"`
}

var (
	LeftAck = Control{Type: TypeLeft}
	Ping    = Control{Type: TypePing}
)
