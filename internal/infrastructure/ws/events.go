package ws

// Inbound event names (client -> server).
const (
	SetupEvent      = "setup"
	JoinChatEvent   = "join chat"
	TypingEvent     = "typing"
	StopTypingEvent = "stop typing"
	NewMessageEvent = "new message"

	// DisconnectEvent is raised by the transport, never read off the wire.
	DisconnectEvent = "disconnect"
)

// Outbound event names (server -> client).
const (
	ConnectedEvent       = "connected"
	MessageReceivedEvent = "message received"
)
