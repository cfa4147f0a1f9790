package protocol

import (
	"errors"
	"fmt"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

var (
	ErrMalformed   = errors.New("malformed frame")
	ErrUnknownType = errors.New("unknown message type")
	ErrInvalid     = errors.New("invalid message")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one inbound frame into its typed message.
// Errors wrap ErrMalformed, ErrUnknownType or ErrInvalid.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg Inbound
	switch env.Type {
	case TypeJoin:
		msg = &Join{}
	case TypeLeave:
		msg = &Leave{}
	case TypeChat:
		msg = &Chat{}
	case TypePlayerMove:
		msg = &PlayerMove{}
	case TypePlayerOnStage:
		msg = &PlayerOnStage{}
	case TypeSignal:
		msg = &SignalRelay{}
	case TypePong:
		return &LivenessReply{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, env.Type, err)
	}
	return msg, nil
}

// Encode serializes an outbound message into a frame.
func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return core.Frame(b), nil
}

// MustEncode is for package-level frames built from constant messages.
func MustEncode(v any) core.Frame {
	f, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return f
}
