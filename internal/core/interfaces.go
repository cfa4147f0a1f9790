package core

import (
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/google/uuid"
)

// ConnID identifies one live transport session.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// PlayerDTO is a read-only view for APIs (no transport fields).
type PlayerDTO struct {
	ID       ConnID          `json:"id"`
	Username string          `json:"username"`
	Position domain.Position `json:"position"`
	OnStage  bool            `json:"onStage"`
}

type RoomInfo struct {
	Slug        domain.RoomSlug `json:"slug"`
	MemberCount int             `json:"member_count"`
}
