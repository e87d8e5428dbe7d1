package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"asset-lifecycle-service/internal/core/domain"
)

// AssetRepository is the canonical asset record store. Reads may be served by
// a lagging replica, so a Get right after Update can return the old value.
type AssetRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	// GetPrimary reads from the write primary and always reflects the last
	// acknowledged Update.
	GetPrimary(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.AssetPatch) (*domain.Asset, error)
}

type FeedbackFilter struct {
	AssetID  uuid.UUID
	Revision *int
}

type FeedbackRepository interface {
	Create(ctx context.Context, item *domain.FeedbackItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FeedbackItem, error)
	List(ctx context.Context, filter FeedbackFilter) ([]*domain.FeedbackItem, error)
	// ListReplies returns every reply whose parent is in parentIDs, regardless
	// of the revision the reply was created in.
	ListReplies(ctx context.Context, parentIDs []uuid.UUID) ([]*domain.FeedbackItem, error)
	MarkSuperseded(ctx context.Context, assetID uuid.UUID) (int64, error)
}

// ArtifactVersionRepository tracks backup copies. Live versions are derived
// from the asset record and never stored here.
type ArtifactVersionRepository interface {
	Create(ctx context.Context, version *domain.ArtifactVersion) error
	FindBackup(ctx context.Context, assetID uuid.UUID, kind domain.FileKind, groupKey, sourceLocator string) (*domain.ArtifactVersion, error)
	GetByLocator(ctx context.Context, assetID uuid.UUID, locator string) (*domain.ArtifactVersion, error)
	ListByAsset(ctx context.Context, assetID uuid.UUID) ([]*domain.ArtifactVersion, error)
	Delete(ctx context.Context, assetID uuid.UUID, locator string) error
}

type StatusHistoryRepository interface {
	Append(ctx context.Context, change *domain.StatusChange) error
	ListByAsset(ctx context.Context, assetID uuid.UUID) ([]*domain.StatusChange, error)
}

// AssignmentRepository stamps completion on the modeler's assignment record.
type AssignmentRepository interface {
	MarkCompleted(ctx context.Context, assetID uuid.UUID, at time.Time) error
}
