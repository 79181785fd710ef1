package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/contracts"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
)

type MessageConsumer interface {
	ConsumeMessages(queueName string, handler messaging.MessageHandler) error
}

// SessionConsumer turns published session activity into audit log entries.
type SessionConsumer struct {
	consumer MessageConsumer
	repo     domain.SessionAuditRepository
	logger   logging.Logger
}

func NewSessionConsumer(consumer MessageConsumer, repo domain.SessionAuditRepository, logger logging.Logger) *SessionConsumer {
	return &SessionConsumer{
		consumer: consumer,
		repo:     repo,
		logger:   logger,
	}
}

func (c *SessionConsumer) Listen() error {
	return c.consumer.ConsumeMessages(messaging.SessionActivityQueue, func(ctx context.Context, msg amqp.Delivery) error {
		return c.handle(ctx, msg.Body)
	})
}

func (c *SessionConsumer) handle(ctx context.Context, body []byte) error {
	var message contracts.AmqpMessage
	if err := json.Unmarshal(body, &message); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	var payload messaging.SessionEventData
	if err := json.Unmarshal(message.Data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal session event: %w", err)
	}

	if err := c.repo.Log(ctx, domain.NewSessionAuditLog(payload.Activity)); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	c.logger.Debug(logging.MongoDB, logging.Audit, "session activity recorded", map[logging.ExtraKey]any{
		logging.Event:        string(payload.Activity.Type),
		logging.ConnectionID: payload.Activity.ConnectionID,
		logging.UserID:       payload.Activity.UserID,
	})
	return nil
}
