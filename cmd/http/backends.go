package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/configs"
	"github.com/hilthontt/parley/internal/infrastructure/events"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/messaging"
	"github.com/hilthontt/parley/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/parley/internal/infrastructure/ws"
	"github.com/hilthontt/parley/internal/persistence/db"
	"github.com/hilthontt/parley/internal/persistence/repository"
	"github.com/redis/go-redis/v9"
)

const activityQueueSize = 1024

// activityPipeline owns the optional broker and audit store behind the
// dispatcher's notifier.
type activityPipeline struct {
	notifier *events.AsyncNotifier
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closers  []func()
}

func newActivityPipeline(ctx context.Context, cfg *configs.Config, logger logging.Logger) (*activityPipeline, error) {
	p := &activityPipeline{}

	var repo domain.SessionAuditRepository
	if cfg.Mongo.Enabled {
		mongoCfg := db.NewMongoConfig(cfg.Mongo)
		client, err := db.NewMongoClient(ctx, mongoCfg, logger)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, func() { _ = db.DisconnectMongo(context.Background(), client) })

		repo = repository.NewSessionAuditLogRepository(db.GetDatabase(client, mongoCfg))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn(logging.MongoDB, logging.Startup, "failed to ensure audit log indexes", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}

	var publisher events.ActivityPublisher
	switch {
	case cfg.RabbitMQ.Enabled:
		rmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URI, logger)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, rmq.Close)
		publisher = events.NewSessionPublisher(rmq)

		if repo != nil {
			if err := events.NewSessionConsumer(rmq, repo, logger).Listen(); err != nil {
				p.Close()
				return nil, fmt.Errorf("failed to start session consumer: %w", err)
			}
		}
		logger.Info(logging.RabbitMQ, logging.Startup, "publishing session activity", nil)
	case repo != nil:
		publisher = events.NewAuditWriter(repo)
	}

	if publisher == nil {
		return p, nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.notifier = events.NewAsyncNotifier(publisher, activityQueueSize, logger)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.notifier.Run(runCtx)
	}()

	return p, nil
}

// Notifier is nil when no backend is configured.
func (p *activityPipeline) Notifier() ws.ActivityNotifier {
	if p.notifier == nil {
		return nil
	}
	return p.notifier
}

// Close flushes pending activity, then releases the backends.
func (p *activityPipeline) Close() {
	if p.cancel != nil {
		p.cancel()
		p.wg.Wait()
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// newRedisClient returns nil unless the rate limiter is backed by redis.
// An unreachable redis is not fatal: the limiter fails open.
func newRedisClient(cfg *configs.Config, logger logging.Logger) *redis.Client {
	if cfg.RateLimiter.Store != ratelimiter.StoreRedis {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn(logging.Redis, logging.Startup, "redis unreachable, rate limiting fails open", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	return client
}
