package contracts

import "github.com/hilthontt/parley/internal/domain"

// AmqpMessage is the envelope published on the sessions exchange.
type AmqpMessage struct {
	UserID string `json:"userId,omitempty"`
	Data   []byte `json:"data"`
}

// Routing keys
const (
	EventSessionConnected    = "session.connected"
	EventSessionIdentified   = "session.identified"
	EventSessionDisconnected = "session.disconnected"
	EventChatJoined          = "chat.joined"
)

var SessionRoutingKeys = []string{
	EventSessionConnected,
	EventSessionIdentified,
	EventSessionDisconnected,
	EventChatJoined,
}

// RoutingKeyFor returns "" for event types that are not published.
func RoutingKeyFor(eventType domain.SessionEventType) string {
	switch eventType {
	case domain.EventSessionConnected:
		return EventSessionConnected
	case domain.EventSessionIdentified:
		return EventSessionIdentified
	case domain.EventSessionDisconnected:
		return EventSessionDisconnected
	case domain.EventChatJoined:
		return EventChatJoined
	default:
		return ""
	}
}
