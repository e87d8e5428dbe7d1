package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/util/retry"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

// RevisionTracker scopes feedback to revision rounds.
type RevisionTracker struct {
	assets   ports.AssetRepository
	feedback ports.FeedbackRepository
	now      func() time.Time
}

func NewRevisionTracker(assets ports.AssetRepository, feedback ports.FeedbackRepository) *RevisionTracker {
	return &RevisionTracker{assets: assets, feedback: feedback, now: time.Now}
}

func (t *RevisionTracker) TagOnCreate(ctx context.Context, assetID uuid.UUID) (int, error) {
	asset, err := t.assets.Get(ctx, assetID)
	if err != nil {
		return 0, err
	}
	return asset.RevisionCount, nil
}

type CreateFeedbackInput struct {
	Kind     domain.FeedbackKind
	ParentID *uuid.UUID
	AuthorID string
	Body     string
	Position *domain.Vec3
	Normal   *domain.Vec3
}

// CreateFeedback stores a new item tagged with the asset's current revision.
// Replies take the revision of their parent instead.
func (t *RevisionTracker) CreateFeedback(ctx context.Context, assetID uuid.UUID, in CreateFeedbackInput) (*domain.FeedbackItem, error) {
	if strings.TrimSpace(in.Body) == "" {
		return nil, domain.ErrEmptyFeedback
	}
	kind := in.Kind
	if kind == "" {
		kind = domain.FeedbackComment
	}
	if kind != domain.FeedbackAnnotation && kind != domain.FeedbackComment {
		return nil, &domain.ValidationError{Field: "kind", Reason: "unknown feedback kind", Expected: "annotation|comment", Actual: string(kind)}
	}

	item := &domain.FeedbackItem{
		ID:        uuid.New(),
		AssetID:   assetID,
		Kind:      kind,
		ParentID:  in.ParentID,
		AuthorID:  in.AuthorID,
		Body:      strings.TrimSpace(in.Body),
		CreatedAt: t.now().UTC(),
	}
	if kind == domain.FeedbackAnnotation {
		item.Position = in.Position
		item.Normal = in.Normal
	}

	if in.ParentID != nil {
		parent, err := t.feedback.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.AssetID != assetID {
			return nil, domain.ErrInvalidParent
		}
		item.RevisionNumber = parent.RevisionNumber
	} else {
		rev, err := t.TagOnCreate(ctx, assetID)
		if err != nil {
			return nil, err
		}
		item.RevisionNumber = rev
	}

	if err := t.feedback.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}
	return item, nil
}

// SupersedeForNewUpload marks the asset's outstanding feedback as old. It is
// called once per confirmed model upload.
func (t *RevisionTracker) SupersedeForNewUpload(ctx context.Context, assetID uuid.UUID) (int64, error) {
	n, err := t.feedback.MarkSuperseded(ctx, assetID)
	if err != nil {
		return 0, fmt.Errorf("supersede feedback: %w", err)
	}
	log.WithFields(log.Fields{
		"asset_id": assetID,
		"count":    n,
	}).Info("feedback superseded by new model")
	return n, nil
}

// LiveSet returns the top level items of viewedRevision. Superseded items are
// hidden only when viewing the current revision.
func (t *RevisionTracker) LiveSet(ctx context.Context, assetID uuid.UUID, viewedRevision int) ([]*domain.FeedbackItem, error) {
	asset, err := t.assets.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if viewedRevision < 0 || viewedRevision > asset.RevisionCount {
		return nil, &domain.ValidationError{
			Field:    "revision",
			Reason:   "revision is out of range",
			Expected: fmt.Sprintf("0..%d", asset.RevisionCount),
			Actual:   fmt.Sprint(viewedRevision),
		}
	}

	items, err := t.feedback.List(ctx, ports.FeedbackFilter{AssetID: assetID, Revision: &viewedRevision})
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	live := make([]*domain.FeedbackItem, 0, len(items))
	for _, item := range items {
		if item.IsReply() || !item.IsLive(viewedRevision, asset.RevisionCount) {
			continue
		}
		live = append(live, item)
	}
	sortByCreated(live)
	return live, nil
}

// Threads returns LiveSet with each item's replies attached.
func (t *RevisionTracker) Threads(ctx context.Context, assetID uuid.UUID, viewedRevision int) ([]domain.FeedbackThread, error) {
	live, err := t.LiveSet(ctx, assetID, viewedRevision)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return []domain.FeedbackThread{}, nil
	}

	ids := make([]uuid.UUID, 0, len(live))
	for _, item := range live {
		ids = append(ids, item.ID)
	}
	replies, err := t.feedback.ListReplies(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}

	byParent := make(map[uuid.UUID][]*domain.FeedbackItem, len(live))
	for _, r := range replies {
		if r.ParentID == nil {
			continue
		}
		byParent[*r.ParentID] = append(byParent[*r.ParentID], r)
	}

	threads := make([]domain.FeedbackThread, 0, len(live))
	for _, item := range live {
		rs := byParent[item.ID]
		sortByCreated(rs)
		if rs == nil {
			rs = []*domain.FeedbackItem{}
		}
		threads = append(threads, domain.FeedbackThread{Item: item, Replies: rs})
	}
	return threads, nil
}

// AdvanceRevision opens a new revision round and returns its number.
func (t *RevisionTracker) AdvanceRevision(ctx context.Context, assetID uuid.UUID) (int, error) {
	var next int
	err := retry.OnError(retry.DefaultRetry, isStale, func() error {
		asset, err := t.assets.Get(ctx, assetID)
		if err != nil {
			return err
		}
		n := asset.RevisionCount + 1
		rowVersion := asset.RowVersion
		if _, err := t.assets.Update(ctx, assetID, domain.AssetPatch{RevisionCount: &n, ExpectedRowVersion: &rowVersion}); err != nil {
			return err
		}
		next = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"asset_id": assetID,
		"revision": next,
	}).Info("revision advanced")
	return next, nil
}

func isStale(err error) bool {
	return errors.Is(err, domain.ErrStaleAsset)
}

func sortByCreated(items []*domain.FeedbackItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
