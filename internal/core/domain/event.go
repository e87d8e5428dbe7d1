package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventDelivered   EventType = "delivered"
	EventUnapproved  EventType = "unapproved"
	EventQARequested EventType = "qa_requested"
)

type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       EventType         `json:"type"`
	AssetID    uuid.UUID         `json:"asset_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func NewEvent(t EventType, assetID uuid.UUID, attrs map[string]string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		AssetID:    assetID,
		OccurredAt: time.Now().UTC(),
		Attributes: attrs,
	}
}
