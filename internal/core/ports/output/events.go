package ports

import (
	"context"
	"time"

	"asset-lifecycle-service/internal/core/domain"
)

// EventPublisher is fire-and-forget; callers log failures and move on.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// TriggerLock grants a key to at most one holder until ttl expires. It keeps
// two service replicas from starting the same QA review.
type TriggerLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
