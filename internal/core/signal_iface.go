package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Frame is one encoded outbound message.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: a full queue yields ErrBackpressure.
//
//go:generate mockgen -source=signal_iface.go -destination=mocks/signal_mock.go -package=mocks
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
