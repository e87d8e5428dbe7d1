package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/testutil"
)

func TestQAGate_Delivery_QANotRun(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, true)

	_, err := h.gate.UpdateStatus(context.Background(), id, domain.StatusDeliveredByArtist, nil)
	assert.ErrorIs(t, err, domain.ErrQANotRun)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.StatusInProduction, h.assets.Snapshot(id).Status)
	assert.Empty(t, h.events.Types())
}

func TestQAGate_Delivery_QARejected(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, true)
	rejected := false

	_, err := h.gate.UpdateStatus(context.Background(), id, domain.StatusDeliveredByArtist, &rejected)
	assert.ErrorIs(t, err, domain.ErrQARejected)
	assert.Equal(t, domain.StatusInProduction, h.assets.Snapshot(id).Status)
}

func TestQAGate_Delivery_MissingArtifact(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, true)
	approved := domain.VerdictApproved
	empty := ""
	_, err := h.assets.Update(context.Background(), id, domain.AssetPatch{QAVerdict: &approved, SourceArtifactRef: &empty})
	require.NoError(t, err)

	_, err = h.gate.UpdateStatus(context.Background(), id, domain.StatusDeliveredByArtist, nil)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.CodeMissingArtifact, conflict.Code)
	assert.Contains(t, conflict.Detail, "source")
	assert.Equal(t, domain.StatusInProduction, h.assets.Snapshot(id).Status)
}

func TestQAGate_Delivery_NamingIsCaseInsensitive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	model := h.store.SeedObject("assets/"+id.String()+"/model/9/ABC123.glb", []byte("glTF"))
	approved := domain.VerdictApproved
	_, err := h.assets.Update(ctx, id, domain.AssetPatch{QAVerdict: &approved, ModelArtifactRef: &model})
	require.NoError(t, err)

	assignments := new(testutil.MockAssignmentRepo)
	assignments.On("MarkCompleted", mock.Anything, id, mock.AnythingOfType("time.Time")).Return(nil)
	h.gate.assignments = assignments

	asset, err := h.gate.UpdateStatus(ctx, id, domain.StatusDeliveredByArtist, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeliveredByArtist, asset.Status)
	assert.Equal(t, domain.VerdictApproved, asset.QAVerdict)
	assert.Equal(t, []domain.EventType{domain.EventDelivered}, h.events.Types())
	assignments.AssertExpectations(t)

	changes, err := h.history.ListByAsset(ctx, id)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.StatusInProduction, changes[0].PreviousStatus)
	assert.Equal(t, "delivered", changes[0].ActionType)
}

func TestQAGate_Delivery_NamingMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	model := h.store.SeedObject("assets/"+id.String()+"/model/9/xyz999.glb", []byte("glTF"))
	_, err := h.assets.Update(ctx, id, domain.AssetPatch{ModelArtifactRef: &model})
	require.NoError(t, err)
	approved := true

	_, err = h.gate.UpdateStatus(ctx, id, domain.StatusDeliveredByArtist, &approved)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.CodeNamingMismatch, conflict.Code)
	assert.Contains(t, conflict.Detail, "xyz999.glb")
	// the override is only stored with a successful transition
	assert.Equal(t, domain.VerdictUnknown, h.assets.Snapshot(id).QAVerdict)
}

func TestQAGate_InvalidTransition(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusNotStarted, true)

	_, err := h.gate.UpdateStatus(context.Background(), id, domain.StatusApproved, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.gate.UpdateStatus(context.Background(), id, domain.AssetStatus("shipped"), nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestQAGate_RevisionsIncrementRevisionCount(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusDeliveredByArtist, true)

	asset, err := h.gate.UpdateStatus(context.Background(), id, domain.StatusRevisionsRequested, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, asset.RevisionCount)
	assert.Equal(t, domain.StatusRevisionsRequested, asset.Status)
}

func TestQAGate_UnapprovalEmitsEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusApprovedByClient, true)

	_, err := h.gate.UpdateStatus(ctx, id, domain.StatusApproved, nil)
	require.NoError(t, err)
	_, err = h.gate.UpdateStatus(ctx, id, domain.StatusInProduction, nil)
	require.NoError(t, err)

	assert.Equal(t, []domain.EventType{domain.EventUnapproved, domain.EventUnapproved}, h.events.Types())
	changes, _ := h.history.ListByAsset(ctx, id)
	require.Len(t, changes, 2)
	assert.Equal(t, "unapproved", changes[1].ActionType)
}

func TestQAGate_RevisionRequestClearsVerdict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusApproved, true)
	approved := domain.VerdictApproved
	_, err := h.assets.Update(ctx, id, domain.AssetPatch{QAVerdict: &approved})
	require.NoError(t, err)

	asset, err := h.gate.UpdateStatus(ctx, id, domain.StatusRevisionsRequested, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictUnknown, asset.QAVerdict)

	// redelivery needs a fresh review
	_, err = h.gate.UpdateStatus(ctx, id, domain.StatusDeliveredByArtist, nil)
	assert.ErrorIs(t, err, domain.ErrQANotRun)
	assert.Equal(t, domain.StatusRevisionsRequested, h.assets.Snapshot(id).Status)
}

func TestQAGate_LeavingDeliveredClearsVerdict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusDeliveredByArtist, true)
	approved := domain.VerdictApproved
	_, err := h.assets.Update(ctx, id, domain.AssetPatch{QAVerdict: &approved})
	require.NoError(t, err)

	asset, err := h.gate.UpdateStatus(ctx, id, domain.StatusApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictApproved, asset.QAVerdict)

	asset, err = h.gate.UpdateStatus(ctx, id, domain.StatusInProduction, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictUnknown, asset.QAVerdict)
}

func TestQAGate_VerdictOverrideWinsOverReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	approved := true

	asset, err := h.gate.UpdateStatus(ctx, id, domain.StatusRevisionsRequested, &approved)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictApproved, asset.QAVerdict)
}

func TestQAGate_SameStatusIsNoop(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, true)

	_, err := h.gate.UpdateStatus(context.Background(), id, domain.StatusInProduction, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, h.assets.Updates)

	approved := true
	asset, err := h.gate.UpdateStatus(context.Background(), id, domain.StatusInProduction, &approved)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictApproved, asset.QAVerdict)
	assert.Empty(t, h.events.Types())
}

func TestQAGate_BestEffortSideEffects(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, true)

	history := new(testutil.MockStatusHistoryRepo)
	history.On("Append", mock.Anything, mock.Anything).Return(errors.New("table missing"))
	events := new(testutil.MockEventPublisher)
	events.On("Publish", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	h.gate.history = history
	h.gate.events = events

	approved := true
	asset, err := h.gate.UpdateStatus(context.Background(), id, domain.StatusDeliveredByArtist, &approved)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeliveredByArtist, asset.Status)
	history.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestQAGate_RunReview_StoresVerdict(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, true)
	model := h.assets.Snapshot(id).ModelArtifactRef
	h.review.On("RunReview", mock.Anything, model, []string{"front.png"}).Return(true, nil)

	verdict, err := h.gate.RunReview(context.Background(), id, []string{"front.png"})
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictApproved, verdict)
	assert.Equal(t, domain.VerdictApproved, h.assets.Snapshot(id).QAVerdict)
	assert.Equal(t, []domain.EventType{domain.EventQARequested}, h.events.Types())
}

func TestQAGate_RunReview_DiscardsVerdictForReplacedModel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	h.review.On("RunReview", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			patch := domain.AssetPatch{BumpArtifactToken: true}.WithField(domain.FieldModelArtifactRef, "mem://artifacts/replacement.glb")
			_, err := h.assets.Update(ctx, id, patch)
			require.NoError(t, err)
		}).
		Return(false, nil)

	verdict, err := h.gate.RunReview(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictRejected, verdict)
	assert.Equal(t, domain.VerdictUnknown, h.assets.Snapshot(id).QAVerdict)
}

func TestQAGate_RunReview_KeepsVerdictAfterSourceWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	h.review.On("RunReview", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			patch := domain.AssetPatch{BumpArtifactToken: true}.WithField(domain.FieldSourceArtifactRef, "mem://artifacts/new.blend")
			_, err := h.assets.Update(ctx, id, patch)
			require.NoError(t, err)
		}).
		Return(true, nil)

	_, err := h.gate.RunReview(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictApproved, h.assets.Snapshot(id).QAVerdict)
}

func TestQAGate_RunReview_OneAtATime(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, true)
	release := make(chan struct{})
	started := make(chan struct{})
	h.review.On("RunReview", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(true, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := h.gate.RunReview(context.Background(), id, nil)
		done <- err
	}()
	<-started

	assert.True(t, h.gate.ReviewInProgress(id))
	_, err := h.gate.RunReview(context.Background(), id, nil)
	assert.ErrorIs(t, err, domain.ErrReviewInProgress)

	close(release)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("review did not finish")
	}
	assert.False(t, h.gate.ReviewInProgress(id))
}

func TestQAGate_RunReview_NoModel(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, false)

	_, err := h.gate.RunReview(context.Background(), id, nil)
	assert.ErrorIs(t, err, domain.ErrMissingArtifact)
	h.review.AssertNotCalled(t, "RunReview", mock.Anything, mock.Anything, mock.Anything)
}

func TestQAGate_ResetVerdict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	approved := domain.VerdictApproved
	_, err := h.assets.Update(ctx, id, domain.AssetPatch{QAVerdict: &approved})
	require.NoError(t, err)

	reset, err := h.gate.ResetVerdict(ctx, id, domain.StatusDeliveredByArtist)
	require.NoError(t, err)
	assert.False(t, reset)
	assert.Equal(t, domain.VerdictApproved, h.assets.Snapshot(id).QAVerdict)

	reset, err = h.gate.ResetVerdict(ctx, id, domain.StatusInProduction)
	require.NoError(t, err)
	assert.True(t, reset)
	assert.Equal(t, domain.VerdictUnknown, h.assets.Snapshot(id).QAVerdict)
}

func TestCheckDelivery_Order(t *testing.T) {
	asset := &domain.Asset{ArticleID: "abc123", QAVerdict: domain.VerdictUnknown}
	assert.ErrorIs(t, CheckDelivery(asset), domain.ErrQANotRun)

	asset.QAVerdict = domain.VerdictApproved
	assert.ErrorIs(t, CheckDelivery(asset), domain.ErrMissingArtifact)

	asset.ModelArtifactRef = "https://cdn.example.com/assets/1/model/2/ABC123_v2.glb"
	asset.SourceArtifactRef = "https://cdn.example.com/assets/1/source/2/abc123.blend"
	assert.NoError(t, CheckDelivery(asset))
}
