package messaging

import "github.com/hilthontt/parley/internal/domain"

const (
	SessionActivityQueue = "session_activity"
	DeadLetterQueue      = "dead_letter_queue"
)

type SessionEventData struct {
	Activity domain.SessionActivity `json:"activity"`
}
