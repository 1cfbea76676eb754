package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "herald/contexts/newsletter-production/pipeline-service/application"
	"herald/contexts/newsletter-production/pipeline-service/ports"
)

// OutboxRelay publishes pending pipeline outbox rows to the event bus.
// Completion notifications travel through here so a bus outage never
// affects pipeline outcome.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("pipeline outbox list failed",
			"event", "pipeline_outbox_list_failed",
			"module", "newsletter-production/pipeline-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("pipeline outbox decode failed",
				"event", "pipeline_outbox_decode_failed",
				"module", "newsletter-production/pipeline-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}

		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("pipeline outbox publish failed",
				"event", "pipeline_outbox_publish_failed",
				"module", "newsletter-production/pipeline-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", event.EventType,
				"topic", topic,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("pipeline outbox mark published failed",
				"event", "pipeline_outbox_mark_published_failed",
				"module", "newsletter-production/pipeline-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("pipeline outbox relay cycle completed",
			"event", "pipeline_outbox_relay_completed",
			"module", "newsletter-production/pipeline-service",
			"layer", "worker",
			"published_count", len(pending),
		)
	}
	return nil
}
