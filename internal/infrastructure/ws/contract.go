package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hilthontt/parley/internal/domain"
)

var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Frame is the wire envelope for both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is the closed set of events a client can send. The unexported
// method keeps implementations inside this package.
type Inbound interface {
	EventName() string
	inbound()
}

type Setup struct {
	User domain.User
}

type JoinChat struct {
	Room string
}

type Typing struct {
	Room string
}

type StopTyping struct {
	Room string
}

// NewMessage keeps the raw bytes so recipients get exactly what the sender
// emitted, including fields this server does not model.
type NewMessage struct {
	Message domain.Message
	Raw     json.RawMessage
}

type Disconnect struct{}

func (Setup) EventName() string      { return SetupEvent }
func (JoinChat) EventName() string   { return JoinChatEvent }
func (Typing) EventName() string     { return TypingEvent }
func (StopTyping) EventName() string { return StopTypingEvent }
func (NewMessage) EventName() string { return NewMessageEvent }
func (Disconnect) EventName() string { return DisconnectEvent }

func (Setup) inbound()      {}
func (JoinChat) inbound()   {}
func (Typing) inbound()     {}
func (StopTyping) inbound() {}
func (NewMessage) inbound() {}
func (Disconnect) inbound() {}

// DecodeInbound turns one websocket text frame into an Inbound event.
// "disconnect" is rejected as unknown: only the transport may raise it.
func DecodeInbound(raw []byte) (Inbound, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch frame.Event {
	case SetupEvent:
		var user domain.User
		if err := decodeData(frame, &user); err != nil {
			return nil, err
		}
		return Setup{User: user}, nil

	case JoinChatEvent:
		room, err := decodeRoom(frame)
		if err != nil {
			return nil, err
		}
		return JoinChat{Room: room}, nil

	case TypingEvent:
		room, err := decodeRoom(frame)
		if err != nil {
			return nil, err
		}
		return Typing{Room: room}, nil

	case StopTypingEvent:
		room, err := decodeRoom(frame)
		if err != nil {
			return nil, err
		}
		return StopTyping{Room: room}, nil

	case NewMessageEvent:
		var msg domain.Message
		if err := decodeData(frame, &msg); err != nil {
			return nil, err
		}
		return NewMessage{Message: msg, Raw: frame.Data}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
	}
}

func decodeData(frame Frame, v any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrMalformedPayload, frame.Event)
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, frame.Event, err)
	}
	return nil
}

// decodeRoom accepts the room key as a string or a number.
func decodeRoom(frame Frame) (string, error) {
	var room domain.ID
	if err := decodeData(frame, &room); err != nil {
		return "", err
	}
	return string(room), nil
}

// Outbound is an encoded server event. Data is nil for the payload-less
// events (connected, typing, stop typing).
type Outbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewConnected() *Outbound {
	return &Outbound{Event: ConnectedEvent}
}

func NewTyping() *Outbound {
	return &Outbound{Event: TypingEvent}
}

func NewStopTyping() *Outbound {
	return &Outbound{Event: StopTypingEvent}
}

func NewMessageReceived(raw json.RawMessage) *Outbound {
	return &Outbound{Event: MessageReceivedEvent, Data: raw}
}
