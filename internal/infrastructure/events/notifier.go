package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
)

const publishTimeout = 5 * time.Second

type ActivityPublisher interface {
	PublishActivity(ctx context.Context, activity domain.SessionActivity) error
}

// AsyncNotifier decouples the realtime core from the broker: Notify never
// blocks and drops the activity when the queue is full.
type AsyncNotifier struct {
	queue     chan domain.SessionActivity
	publisher ActivityPublisher
	logger    logging.Logger
	dropped   atomic.Int64
}

func NewAsyncNotifier(publisher ActivityPublisher, size int, logger logging.Logger) *AsyncNotifier {
	if size <= 0 {
		size = 256
	}

	return &AsyncNotifier{
		queue:     make(chan domain.SessionActivity, size),
		publisher: publisher,
		logger:    logger,
	}
}

func (n *AsyncNotifier) Notify(activity domain.SessionActivity) {
	select {
	case n.queue <- activity:
	default:
		n.dropped.Add(1)
	}
}

func (n *AsyncNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// Run publishes queued activities until ctx is done, then flushes whatever is
// still buffered.
func (n *AsyncNotifier) Run(ctx context.Context) {
	for {
		select {
		case activity := <-n.queue:
			n.publish(ctx, activity)
		case <-ctx.Done():
			n.flush()
			return
		}
	}
}

func (n *AsyncNotifier) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	for {
		select {
		case activity := <-n.queue:
			n.publish(ctx, activity)
		default:
			if dropped := n.dropped.Load(); dropped > 0 {
				n.logger.Warn(logging.RabbitMQ, logging.Publish, "session activity dropped", map[logging.ExtraKey]any{
					logging.Dropped: dropped,
				})
			}
			return
		}
	}
}

func (n *AsyncNotifier) publish(ctx context.Context, activity domain.SessionActivity) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := n.publisher.PublishActivity(ctx, activity); err != nil {
		n.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish session activity", map[logging.ExtraKey]any{
			logging.Event:        string(activity.Type),
			logging.ConnectionID: activity.ConnectionID,
			logging.ErrorMessage: err.Error(),
		})
	}
}
