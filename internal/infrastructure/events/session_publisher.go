package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/contracts"
	"github.com/hilthontt/parley/internal/infrastructure/messaging"
)

type MessagePublisher interface {
	PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error
}

type SessionPublisher struct {
	publisher MessagePublisher
}

func NewSessionPublisher(publisher MessagePublisher) *SessionPublisher {
	return &SessionPublisher{
		publisher: publisher,
	}
}

func (p *SessionPublisher) PublishActivity(ctx context.Context, activity domain.SessionActivity) error {
	routingKey := contracts.RoutingKeyFor(activity.Type)
	if routingKey == "" {
		return fmt.Errorf("no routing key for %q", activity.Type)
	}

	data, err := json.Marshal(messaging.SessionEventData{Activity: activity})
	if err != nil {
		return err
	}

	return p.publisher.PublishMessage(ctx, routingKey, contracts.AmqpMessage{
		UserID: activity.UserID,
		Data:   data,
	})
}

// AuditWriter records activities straight into the audit log, for deployments
// that run MongoDB without a broker.
type AuditWriter struct {
	repo domain.SessionAuditRepository
}

func NewAuditWriter(repo domain.SessionAuditRepository) *AuditWriter {
	return &AuditWriter{repo: repo}
}

func (w *AuditWriter) PublishActivity(ctx context.Context, activity domain.SessionActivity) error {
	return w.repo.Log(ctx, domain.NewSessionAuditLog(activity))
}
