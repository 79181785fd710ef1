package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	WebSocket       Category = "WebSocket"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	MongoDB         Category = "MongoDB"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"
	Recover         SubCategory = "Recover"

	// WebSocket
	Connection SubCategory = "Connection"
	Dispatch   SubCategory = "Dispatch"
	Delivery   SubCategory = "Delivery"

	// RabbitMQ / MongoDB
	Publish SubCategory = "Publish"
	Consume SubCategory = "Consume"
	Audit   SubCategory = "Audit"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"

	ConnectionID ExtraKey = "ConnectionId"
	UserID       ExtraKey = "UserId"
	RoomKey      ExtraKey = "RoomKey"
	Event        ExtraKey = "Event"
	Recipients   ExtraKey = "Recipients"
	Dropped      ExtraKey = "Dropped"
)
