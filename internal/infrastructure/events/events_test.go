package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/contracts"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu        sync.Mutex
	published map[string][]contracts.AmqpMessage
	err       error
}

func (f *fakePublisher) PublishMessage(_ context.Context, routingKey string, message contracts.AmqpMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if f.published == nil {
		f.published = make(map[string][]contracts.AmqpMessage)
	}
	f.published[routingKey] = append(f.published[routingKey], message)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, msgs := range f.published {
		n += len(msgs)
	}
	return n
}

type fakeRepo struct {
	domain.SessionAuditRepository
	mu   sync.Mutex
	logs []*domain.SessionAuditLog
	err  error
}

func (f *fakeRepo) Log(_ context.Context, log *domain.SessionAuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.logs = append(f.logs, log)
	return nil
}

type fakeConsumer struct {
	queue   string
	handler messaging.MessageHandler
}

func (f *fakeConsumer) ConsumeMessages(queueName string, handler messaging.MessageHandler) error {
	f.queue = queueName
	f.handler = handler
	return nil
}

func activity(t domain.SessionEventType) domain.SessionActivity {
	return domain.SessionActivity{
		Type:         t,
		ConnectionID: "c1",
		UserID:       "u1",
		RoomKey:      "chat42",
		At:           time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSessionPublisherRoutesByEventType(t *testing.T) {
	pub := &fakePublisher{}
	p := NewSessionPublisher(pub)

	require.NoError(t, p.PublishActivity(context.Background(), activity(domain.EventChatJoined)))

	msgs := pub.published[contracts.EventChatJoined]
	require.Len(t, msgs, 1)
	assert.Equal(t, "u1", msgs[0].UserID)

	var data messaging.SessionEventData
	require.NoError(t, json.Unmarshal(msgs[0].Data, &data))
	assert.Equal(t, activity(domain.EventChatJoined), data.Activity)

	assert.Error(t, p.PublishActivity(context.Background(), activity("bogus")))
}

func TestAsyncNotifierDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	n := NewAsyncNotifier(NewSessionPublisher(pub), 2, logging.NewNop())

	n.Notify(activity(domain.EventSessionConnected))
	n.Notify(activity(domain.EventSessionIdentified))
	n.Notify(activity(domain.EventSessionDisconnected))

	assert.Equal(t, int64(1), n.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestAsyncNotifierFlushesOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	n := NewAsyncNotifier(NewSessionPublisher(pub), 8, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n.Notify(activity(domain.EventSessionConnected))
	n.Notify(activity(domain.EventSessionDisconnected))
	n.Run(ctx)

	assert.Equal(t, 2, pub.count())
}

func TestAsyncNotifierSurvivesPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	n := NewAsyncNotifier(NewSessionPublisher(pub), 1, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Notify(activity(domain.EventSessionConnected))

	require.NotPanics(t, func() { n.Run(ctx) })
	assert.Zero(t, pub.count())
}

func TestAuditWriter(t *testing.T) {
	repo := &fakeRepo{}
	w := NewAuditWriter(repo)

	require.NoError(t, w.PublishActivity(context.Background(), activity(domain.EventChatJoined)))

	require.Len(t, repo.logs, 1)
	assert.Equal(t, domain.EventChatJoined, repo.logs[0].EventType)
	assert.Equal(t, "chat42", repo.logs[0].Metadata["room_key"])
}

func TestSessionConsumerWritesAuditLog(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewSessionPublisher(pub).PublishActivity(context.Background(), activity(domain.EventSessionDisconnected)))
	body, err := json.Marshal(pub.published[contracts.EventSessionDisconnected][0])
	require.NoError(t, err)

	repo := &fakeRepo{}
	consumer := &fakeConsumer{}
	c := NewSessionConsumer(consumer, repo, logging.NewNop())
	require.NoError(t, c.Listen())
	assert.Equal(t, messaging.SessionActivityQueue, consumer.queue)

	require.NoError(t, consumer.handler(context.Background(), amqp.Delivery{Body: body}))

	require.Len(t, repo.logs, 1)
	log := repo.logs[0]
	assert.Equal(t, domain.EventSessionDisconnected, log.EventType)
	assert.Equal(t, "c1", log.ConnectionID)
	assert.Equal(t, "u1", log.UserID)
	assert.NotEmpty(t, log.ID)
}

func TestSessionConsumerRejectsBadPayloads(t *testing.T) {
	repo := &fakeRepo{}
	c := NewSessionConsumer(&fakeConsumer{}, repo, logging.NewNop())

	assert.Error(t, c.handle(context.Background(), []byte("nope")))

	body, _ := json.Marshal(contracts.AmqpMessage{Data: []byte("nope")})
	assert.Error(t, c.handle(context.Background(), body))

	repo.err = errors.New("mongo down")
	data, _ := json.Marshal(messaging.SessionEventData{Activity: activity(domain.EventChatJoined)})
	body, _ = json.Marshal(contracts.AmqpMessage{Data: data})
	assert.ErrorContains(t, c.handle(context.Background(), body), "mongo down")
}
