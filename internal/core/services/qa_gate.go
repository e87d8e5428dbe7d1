package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

// statusRank orders statuses along the production line; moving from an
// approved status to a lower rank is an unapproval.
var statusRank = map[domain.AssetStatus]int{
	domain.StatusNotStarted:         0,
	domain.StatusInProgress:         1,
	domain.StatusInProduction:       2,
	domain.StatusRevisionsRequested: 2,
	domain.StatusDeliveredByArtist:  3,
	domain.StatusApproved:           4,
	domain.StatusApprovedByClient:   5,
}

// QAGate owns the asset lifecycle status and the automated QA verdict.
type QAGate struct {
	assets      ports.AssetRepository
	review      ports.ReviewEngine
	history     ports.StatusHistoryRepository
	assignments ports.AssignmentRepository
	events      ports.EventPublisher
	metrics     ports.Recorder

	backoff wait.Backoff
	mu      sync.Mutex
	running map[uuid.UUID]struct{}
	now     func() time.Time
}

func NewQAGate(
	assets ports.AssetRepository,
	review ports.ReviewEngine,
	history ports.StatusHistoryRepository,
	assignments ports.AssignmentRepository,
	events ports.EventPublisher,
	metrics ports.Recorder,
) *QAGate {
	if metrics == nil {
		metrics = ports.NopRecorder{}
	}
	return &QAGate{
		assets:      assets,
		review:      review,
		history:     history,
		assignments: assignments,
		events:      events,
		metrics:     metrics,
		backoff:     retry.DefaultRetry,
		running:     make(map[uuid.UUID]struct{}),
		now:         time.Now,
	}
}

// CheckDelivery applies the delivery guard: an approved QA verdict, both
// artifacts present and a model named after the article id.
func CheckDelivery(asset *domain.Asset) error {
	switch asset.QAVerdict {
	case domain.VerdictApproved:
	case domain.VerdictRejected:
		return domain.ErrQARejected
	default:
		return domain.ErrQANotRun
	}

	var missing []string
	if asset.ModelArtifactRef == "" {
		missing = append(missing, string(domain.FileKindModel))
	}
	if asset.SourceArtifactRef == "" {
		missing = append(missing, string(domain.FileKindSource))
	}
	if len(missing) > 0 {
		return domain.NewConflict(domain.CodeMissingArtifact, "missing %v artifact", missing)
	}

	if !domain.MatchesArticle(asset.ModelArtifactRef, asset.ArticleID) {
		return domain.NewConflict(domain.CodeNamingMismatch,
			"model file %q does not match article id %q",
			domain.ArtifactBaseName(asset.ModelArtifactRef)+domain.FileExt(asset.ModelArtifactRef), asset.ArticleID)
	}
	return nil
}

// UpdateStatus moves the asset to target. verdictOverride, when set, is
// stored as the QA verdict before the guard runs. A concurrent write to the
// asset causes a fresh read and a fresh guard check.
func (g *QAGate) UpdateStatus(ctx context.Context, assetID uuid.UUID, target domain.AssetStatus, verdictOverride *bool) (*domain.Asset, error) {
	target, err := domain.ParseAssetStatus(string(target))
	if err != nil {
		return nil, err
	}

	var (
		previous domain.AssetStatus
		updated  *domain.Asset
		changed  bool
	)
	err = retry.OnError(g.backoff, isStale, func() error {
		asset, err := g.assets.Get(ctx, assetID)
		if err != nil {
			return err
		}
		previous = asset.Status
		rowVersion := asset.RowVersion
		patch := domain.AssetPatch{ExpectedRowVersion: &rowVersion}

		if verdictOverride != nil {
			v := domain.VerdictFromBool(*verdictOverride)
			asset.QAVerdict = v
			patch.QAVerdict = &v
		}

		if asset.Status == target {
			changed = false
			if patch.QAVerdict == nil {
				updated = asset
				return nil
			}
			updated, err = g.assets.Update(ctx, assetID, patch)
			return err
		}

		if !asset.Status.CanTransitionTo(target) {
			return domain.NewConflict(domain.CodeInvalidTransition, "cannot move from %s to %s", asset.Status, target)
		}
		if target == domain.StatusDeliveredByArtist {
			if err := CheckDelivery(asset); err != nil {
				return err
			}
		}

		patch.Status = &target
		if verdictOverride == nil && resetsVerdict(asset.Status, target) && asset.QAVerdict != domain.VerdictUnknown {
			unknown := domain.VerdictUnknown
			patch.QAVerdict = &unknown
		}
		if target == domain.StatusRevisionsRequested {
			n := asset.RevisionCount + 1
			patch.RevisionCount = &n
		}
		updated, err = g.assets.Update(ctx, assetID, patch)
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			g.metrics.GateRejected(conflict.Code)
			log.WithFields(log.Fields{
				"asset_id": assetID,
				"target":   target,
				"code":     conflict.Code,
			}).Info("status transition rejected")
		}
		return nil, err
	}

	if changed {
		g.afterTransition(ctx, updated, previous, target)
	}
	return updated, nil
}

func (g *QAGate) afterTransition(ctx context.Context, asset *domain.Asset, previous, target domain.AssetStatus) {
	logger := log.WithFields(log.Fields{
		"asset_id": asset.ID,
		"from":     previous,
		"to":       target,
	})
	logger.Info("asset status changed")
	g.metrics.StatusChanged(previous, target)

	unapproved := previous.IsApproved() && statusRank[target] < statusRank[previous]

	if g.history != nil {
		change := &domain.StatusChange{
			ID:             uuid.New(),
			AssetID:        asset.ID,
			PreviousStatus: previous,
			NewStatus:      target,
			ActionType:     actionType(target, unapproved),
			RevisionNumber: asset.RevisionCount,
			CreatedAt:      g.now().UTC(),
		}
		if err := g.history.Append(ctx, change); err != nil {
			logger.WithError(err).Warn("append status history failed")
		}
	}

	if target == domain.StatusDeliveredByArtist {
		if g.assignments != nil {
			if err := g.assignments.MarkCompleted(ctx, asset.ID, g.now().UTC()); err != nil {
				logger.WithError(err).Warn("mark assignment completed failed")
			}
		}
		g.publish(ctx, domain.NewEvent(domain.EventDelivered, asset.ID, map[string]string{
			"article_id": asset.ArticleID,
		}))
	}

	if unapproved {
		g.publish(ctx, domain.NewEvent(domain.EventUnapproved, asset.ID, map[string]string{
			"from": string(previous),
			"to":   string(target),
		}))
	}
}

// resetsVerdict reports whether moving from previous to target voids the QA
// verdict: a revision request, or leaving the delivered and approved states
// for one that does not keep a verdict.
func resetsVerdict(previous, target domain.AssetStatus) bool {
	if target == domain.StatusRevisionsRequested {
		return true
	}
	return previous.PreservesVerdict() && !target.PreservesVerdict()
}

func actionType(target domain.AssetStatus, unapproved bool) string {
	switch {
	case unapproved:
		return "unapproved"
	case target == domain.StatusDeliveredByArtist:
		return "delivered"
	case target == domain.StatusRevisionsRequested:
		return "sent_for_revision"
	case target == domain.StatusApproved:
		return "qa_approved"
	case target == domain.StatusApprovedByClient:
		return "client_approved"
	default:
		return "status_change"
	}
}

// RunReview runs automated QA on the current model and stores the verdict.
// Only one review per asset runs at a time.
func (g *QAGate) RunReview(ctx context.Context, assetID uuid.UUID, referenceImages []string) (domain.QAVerdict, error) {
	if !g.beginReview(assetID) {
		return domain.VerdictUnknown, domain.ErrReviewInProgress
	}
	defer g.endReview(assetID)

	asset, err := g.assets.Get(ctx, assetID)
	if err != nil {
		return domain.VerdictUnknown, err
	}
	if asset.ModelArtifactRef == "" {
		return domain.VerdictUnknown, domain.NewConflict(domain.CodeMissingArtifact, "no model artifact to review")
	}

	g.publish(ctx, domain.NewEvent(domain.EventQARequested, assetID, map[string]string{
		"model_locator": asset.ModelArtifactRef,
	}))

	approved, err := g.review.RunReview(ctx, asset.ModelArtifactRef, referenceImages)
	if err != nil {
		return domain.VerdictUnknown, fmt.Errorf("run review: %w", err)
	}
	verdict := domain.VerdictFromBool(approved)

	logger := log.WithFields(log.Fields{
		"asset_id": assetID,
		"verdict":  verdict,
		"token":    asset.ArtifactToken,
	})

	// A newer model may have landed while the review ran; its verdict must
	// not be overwritten by a verdict for the old one. Source writes also
	// move the token, so compare the model pointer itself.
	latest, err := g.assets.Get(ctx, assetID)
	if err != nil {
		return verdict, err
	}
	if latest.ModelArtifactRef != asset.ModelArtifactRef {
		logger.Warn("model changed during review, discarding verdict")
		return verdict, nil
	}

	if _, err := g.assets.Update(ctx, assetID, domain.AssetPatch{QAVerdict: &verdict}); err != nil {
		return verdict, fmt.Errorf("store verdict: %w", err)
	}
	logger.Info("qa review finished")
	return verdict, nil
}

// ResetVerdict clears the verdict after a new model lands, unless the asset
// already reached a delivered or approved status.
func (g *QAGate) ResetVerdict(ctx context.Context, assetID uuid.UUID, status domain.AssetStatus) (bool, error) {
	if status.PreservesVerdict() {
		return false, nil
	}
	v := domain.VerdictUnknown
	if _, err := g.assets.Update(ctx, assetID, domain.AssetPatch{QAVerdict: &v}); err != nil {
		return false, fmt.Errorf("reset verdict: %w", err)
	}
	return true, nil
}

func (g *QAGate) ReviewInProgress(assetID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[assetID]
	return ok
}

func (g *QAGate) beginReview(assetID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.running[assetID]; ok {
		return false
	}
	g.running[assetID] = struct{}{}
	return true
}

func (g *QAGate) endReview(assetID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, assetID)
}

func (g *QAGate) publish(ctx context.Context, event domain.Event) {
	if g.events == nil {
		return
	}
	if err := g.events.Publish(ctx, event); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"asset_id": event.AssetID,
			"event":    event.Type,
		}).Warn("publish event failed")
	}
}
