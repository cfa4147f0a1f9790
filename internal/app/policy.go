package app

import (
	"fmt"

	"github.com/dkeye/Lobby/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(id core.ConnID) BackpressureAction
}

// SimplePolicy evicts slow members.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.ConnID) BackpressureAction {
	return KickMember
}

// DropPolicy discards the frame and keeps the member.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.ConnID) BackpressureAction {
	return DropFrame
}

// PolicyFor maps a config name to its policy.
func PolicyFor(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return DropPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
