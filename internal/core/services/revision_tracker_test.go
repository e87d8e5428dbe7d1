package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/testutil"
)

func annotate(t *testing.T, h *harness, id uuid.UUID, body string) *domain.FeedbackItem {
	t.Helper()
	item, err := h.tracker.CreateFeedback(context.Background(), id, CreateFeedbackInput{
		Kind:     domain.FeedbackAnnotation,
		AuthorID: "qa-1",
		Body:     body,
		Position: &domain.Vec3{X: 1, Y: 2, Z: 3},
	})
	require.NoError(t, err)
	return item
}

func TestRevisionTracker_TagsCurrentRevision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)

	first := annotate(t, h, id, "scale is off")
	assert.Equal(t, 0, first.RevisionNumber)

	rev, err := h.tracker.AdvanceRevision(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, rev)

	second := annotate(t, h, id, "texture seam")
	assert.Equal(t, 1, second.RevisionNumber)
}

func TestRevisionTracker_RevisionNumberStaysInRange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)

	for round := 0; round < 4; round++ {
		for i := 0; i < 3; i++ {
			item := annotate(t, h, id, "note")
			_, err := h.tracker.CreateFeedback(ctx, id, CreateFeedbackInput{ParentID: &item.ID, Body: "reply"})
			require.NoError(t, err)
		}
		_, err := h.tracker.AdvanceRevision(ctx, id)
		require.NoError(t, err)
	}

	count := h.assets.Snapshot(id).RevisionCount
	assert.Equal(t, 4, count)
	for _, item := range h.feedback.All(id) {
		assert.GreaterOrEqual(t, item.RevisionNumber, 0)
		assert.LessOrEqual(t, item.RevisionNumber, count)
	}
}

func TestRevisionTracker_SupersessionOnNewModel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)

	_, err := h.tracker.AdvanceRevision(ctx, id)
	require.NoError(t, err)
	past := annotate(t, h, id, "round one")
	_, err = h.tracker.AdvanceRevision(ctx, id)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		annotate(t, h, id, "round two")
	}

	live, err := h.tracker.LiveSet(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, live, 3)

	n, err := h.tracker.SupersedeForNewUpload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	live, err = h.tracker.LiveSet(ctx, id, 2)
	require.NoError(t, err)
	assert.Empty(t, live)

	old, err := h.tracker.LiveSet(ctx, id, 1)
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, past.ID, old[0].ID)
}

func TestRevisionTracker_LiveSetRange(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, true)

	_, err := h.tracker.LiveSet(context.Background(), id, 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = h.tracker.LiveSet(context.Background(), id, -1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRevisionTracker_RepliesFollowParent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)

	parent := annotate(t, h, id, "fix the handle")
	_, err := h.tracker.AdvanceRevision(ctx, id)
	require.NoError(t, err)

	reply, err := h.tracker.CreateFeedback(ctx, id, CreateFeedbackInput{
		Kind:     domain.FeedbackComment,
		ParentID: &parent.ID,
		Body:     "done in the next upload",
		Position: &domain.Vec3{X: 9},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, reply.RevisionNumber)
	assert.Nil(t, reply.Position)

	threads, err := h.tracker.Threads(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, parent.ID, threads[0].Item.ID)
	require.Len(t, threads[0].Replies, 1)
	assert.Equal(t, reply.ID, threads[0].Replies[0].ID)

	current, err := h.tracker.Threads(ctx, id, 1)
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestRevisionTracker_CreateFeedback_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	other := h.seedAsset(t, domain.StatusInProduction, true)

	_, err := h.tracker.CreateFeedback(ctx, id, CreateFeedbackInput{Body: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyFeedback)

	_, err = h.tracker.CreateFeedback(ctx, id, CreateFeedbackInput{Kind: "sketch", Body: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	foreign := annotate(t, h, other, "elsewhere")
	_, err = h.tracker.CreateFeedback(ctx, id, CreateFeedbackInput{ParentID: &foreign.ID, Body: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidParent)

	missing := uuid.New()
	_, err = h.tracker.CreateFeedback(ctx, id, CreateFeedbackInput{ParentID: &missing, Body: "x"})
	assert.ErrorIs(t, err, domain.ErrFeedbackNotFound)
}

func TestRevisionTracker_AdvanceRevision_RetriesStaleWrite(t *testing.T) {
	assets := new(testutil.MockAssetRepo)
	tracker := NewRevisionTracker(assets, new(testutil.MockFeedbackRepo))
	id := testAssetID

	assets.On("Get", mock.Anything, id).Return(&domain.Asset{ID: id, RevisionCount: 2, RowVersion: 7}, nil).Once()
	assets.On("Get", mock.Anything, id).Return(&domain.Asset{ID: id, RevisionCount: 3, RowVersion: 8}, nil).Once()
	assets.On("Update", mock.Anything, id, mock.MatchedBy(func(p domain.AssetPatch) bool {
		return *p.ExpectedRowVersion == 7
	})).Return(nil, domain.ErrStaleAsset).Once()
	assets.On("Update", mock.Anything, id, mock.MatchedBy(func(p domain.AssetPatch) bool {
		return *p.ExpectedRowVersion == 8 && *p.RevisionCount == 4
	})).Return(&domain.Asset{ID: id, RevisionCount: 4}, nil).Once()

	rev, err := tracker.AdvanceRevision(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 4, rev)
	assets.AssertExpectations(t)
}
