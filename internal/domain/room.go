package domain

import "errors"

const MaxRoomSlugLen = 64

var (
	ErrRoomSlugEmpty   = errors.New("room slug empty")
	ErrRoomSlugTooLong = errors.New("room slug too long")
)

// RoomSlug labels a broadcast group. Rooms are never stored on their own:
// a room exists while at least one connection has joined it.
type RoomSlug string

func (s RoomSlug) Validate() error {
	if len(s) == 0 {
		return ErrRoomSlugEmpty
	}
	if len(s) > MaxRoomSlugLen {
		return ErrRoomSlugTooLong
	}
	return nil
}
