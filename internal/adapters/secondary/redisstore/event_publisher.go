package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

type eventMessage struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	AssetID    string            `json:"asset_id"`
	OccurredAt string            `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type eventPublisher struct {
	rdb     *redis.Client
	listKey string
}

// NewEventPublisher pushes events onto a Redis list consumed by the
// notification and assignment workers with BLPOP.
func NewEventPublisher(rdb *redis.Client, listKey string) ports.EventPublisher {
	return &eventPublisher{rdb: rdb, listKey: listKey}
}

func (p *eventPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if err := p.rdb.LPush(ctx, p.listKey, payload).Err(); err != nil {
		return fmt.Errorf("push %s event: %w", event.Type, err)
	}
	return nil
}

func encodeEvent(event domain.Event) ([]byte, error) {
	b, err := json.Marshal(eventMessage{
		ID:         event.ID.String(),
		Type:       string(event.Type),
		AssetID:    event.AssetID.String(),
		OccurredAt: event.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Attributes: event.Attributes,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}
