package workers

import (
	"context"
	"testing"
	"time"

	"herald/contexts/newsletter-production/pipeline-service/adapters/memory"
	"herald/contexts/newsletter-production/pipeline-service/domain/entities"
	"herald/contexts/newsletter-production/pipeline-service/ports"
)

type capturingPublisher struct {
	topics []string
	events []ports.EventEnvelope
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func TestOutboxRelayPublishesPendingOnce(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC))

	err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:       "evt-1",
		EventType:     "campaign.finalized",
		OccurredAt:    store.Now(),
		SourceService: "pipeline-service",
		PartitionKey:  "camp-1",
	})
	if err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}

	publisher := &capturingPublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay cycle failed: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.events))
	}
	if publisher.topics[0] != "campaign.finalized" {
		t.Fatalf("topic should follow event type, got %s", publisher.topics[0])
	}
	if publisher.events[0].EventID != "evt-1" {
		t.Fatalf("unexpected event id %s", publisher.events[0].EventID)
	}

	// A second cycle finds nothing pending.
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("second relay cycle failed: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("published rows must not be republished, got %d events", len(publisher.events))
	}
}

func TestScheduleJobSkipsCompletedCampaign(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC))

	job := ScheduleJob{
		// A nil runner would panic if the job tried to run; a campaign past
		// processing means it must not.
		Campaigns: store,
		Clock:     store,
	}

	store.SeedCampaign(entities.Campaign{
		CampaignID: "camp-1",
		Date:       entities.DateOf(store.Now()),
		Status:     entities.CampaignStatusDraft,
	})
	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("schedule job failed: %v", err)
	}
}
