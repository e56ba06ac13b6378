package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fuelpoints/platform/internal/repository"
)

// Publisher sends one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// OutboxPoller polls the event_outbox table and relays events to a Publisher.
// Delivery is at-least-once: a row is stamped only after its publish succeeds,
// and a failed publish stops the batch so per-player order is kept.
type OutboxPoller struct {
	db        repository.DBTX
	repo      repository.OutboxRepository
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates a new outbox poller.
func NewOutboxPoller(db repository.DBTX, repo repository.OutboxRepository, publisher Publisher, interval time.Duration, batchSize int, logger *slog.Logger) *OutboxPoller {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPoller{
		db:        db,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				p.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// Topic returns the Kafka topic of an outbox row. Event types are already
// namespaced (fuel.<subject>.<event>).
func Topic(rec repository.OutboxRecord) string {
	return string(rec.EventType)
}

// Poll relays one batch and returns how many events were published.
func (p *OutboxPoller) Poll(ctx context.Context) (int, error) {
	rows, err := p.repo.FetchUnpublished(ctx, p.db, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(rows))
	var pubErr error
	for _, row := range rows {
		msg, _ := json.Marshal(map[string]interface{}{
			"event_id":       row.EventID,
			"aggregate_type": row.AggregateType,
			"aggregate_id":   row.AggregateID,
			"event_type":     row.EventType,
			"payload":        row.Payload,
			"occurred_at":    row.OccurredAt,
		})
		if pubErr = p.publisher.Publish(ctx, Topic(row), []byte(row.PartitionKey), msg); pubErr != nil {
			p.logger.Error("kafka publish failed", "event_id", row.EventID, "seq", row.Seq, "error", pubErr)
			break
		}
		published = append(published, row.Seq)
	}

	if len(published) > 0 {
		if err := p.repo.MarkPublished(ctx, p.db, published); err != nil {
			return 0, fmt.Errorf("mark published: %w", err)
		}
	}
	p.logger.Debug("outbox poll complete", "published", len(published), "fetched", len(rows))
	if pubErr != nil {
		return len(published), fmt.Errorf("publish: %w", pubErr)
	}
	return len(published), nil
}
