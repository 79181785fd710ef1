package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SessionEventType string

const (
	EventSessionConnected    SessionEventType = "session_connected"
	EventSessionIdentified   SessionEventType = "session_identified"
	EventSessionDisconnected SessionEventType = "session_disconnected"
	EventChatJoined          SessionEventType = "chat_joined"
)

// SessionActivity is a presence notification emitted by the realtime core.
type SessionActivity struct {
	Type         SessionEventType `json:"type"`
	ConnectionID string           `json:"connectionId"`
	UserID       string           `json:"userId,omitempty"`
	RoomKey      string           `json:"roomKey,omitempty"`
	At           time.Time        `json:"at"`
}

type SessionAuditLog struct {
	ID           string           `bson:"_id" json:"id"`
	ConnectionID string           `bson:"connection_id" json:"connectionId"`
	UserID       string           `bson:"user_id,omitempty" json:"userId,omitempty"`
	EventType    SessionEventType `bson:"event_type" json:"eventType"`
	Timestamp    time.Time        `bson:"timestamp" json:"timestamp"`
	Metadata     map[string]any   `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type SessionAuditRepository interface {
	Log(ctx context.Context, log *SessionAuditLog) error
	GetByUserID(ctx context.Context, userID string, limit int) ([]SessionAuditLog, error)
	GetByEventType(ctx context.Context, eventType SessionEventType, from, to time.Time) ([]SessionAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context) error
}

func NewSessionAuditLog(activity SessionActivity) *SessionAuditLog {
	ts := activity.At
	if ts.IsZero() {
		ts = time.Now()
	}

	log := &SessionAuditLog{
		ID:           uuid.NewString(),
		ConnectionID: activity.ConnectionID,
		UserID:       activity.UserID,
		EventType:    activity.Type,
		Timestamp:    ts,
	}

	if activity.RoomKey != "" {
		log.Metadata = map[string]any{
			"room_key": activity.RoomKey,
		}
	}

	return log
}
