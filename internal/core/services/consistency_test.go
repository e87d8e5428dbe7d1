package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/testutil"
)

func TestConsistencyVerifier_ConfirmsAfterLaggingReads(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, false)
	h.assets.Lag = 2

	res, err := h.verifier.CommitAndVerify(context.Background(), id, domain.FieldModelArtifactRef, "mem://artifacts/new.glb")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "mem://artifacts/new.glb", res.Confirmed)
	assert.Equal(t, int64(1), res.Asset.ArtifactToken)
	assert.Equal(t, 1, h.assets.Updates)
}

func TestConsistencyVerifier_ExhaustedReturnsConsistencyError(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, false)
	h.assets.Lag = 100

	_, err := h.verifier.CommitAndVerify(context.Background(), id, domain.FieldSourceArtifactRef, "mem://artifacts/new.blend")
	var cerr *domain.ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, domain.ErrConsistency)
	assert.Equal(t, 6, cerr.Attempts)
	assert.Equal(t, "mem://artifacts/new.blend", cerr.Expected)
	assert.Equal(t, "", cerr.Observed)
	// the original write plus one corrective rewrite
	assert.Equal(t, 2, h.assets.Updates)
	// only the first write moves the token
	assert.Equal(t, int64(1), h.assets.Snapshot(id).ArtifactToken)
}

func TestConsistencyVerifier_CorrectiveRewriteConfirms(t *testing.T) {
	repo := new(testutil.MockAssetRepo)
	v := NewConsistencyVerifier(repo, ConsistencyConfig{MaxAttempts: 2, Factor: 1}, nil)
	v.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	id := testAssetID
	stale := &domain.Asset{ID: id}
	fresh := &domain.Asset{ID: id, ModelArtifactRef: "loc", ArtifactToken: 4}
	repo.On("Update", mock.Anything, id, mock.MatchedBy(func(p domain.AssetPatch) bool { return p.BumpArtifactToken })).Return(fresh, nil).Once()
	repo.On("Update", mock.Anything, id, mock.MatchedBy(func(p domain.AssetPatch) bool { return !p.BumpArtifactToken })).Return(fresh, nil).Once()
	repo.On("Get", mock.Anything, id).Return(stale, nil).Twice()
	repo.On("Get", mock.Anything, id).Return(fresh, nil).Once()

	res, err := v.CommitAndVerify(context.Background(), id, domain.FieldModelArtifactRef, "loc")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	repo.AssertExpectations(t)
}

func TestConsistencyVerifier_MarkerShortCircuits(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, false)
	ctx := context.Background()

	first, err := h.verifier.CommitAndVerify(ctx, id, domain.FieldModelArtifactRef, "loc-a")
	require.NoError(t, err)
	second, err := h.verifier.CommitAndVerify(ctx, id, domain.FieldModelArtifactRef, "loc-a")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, h.assets.Updates)

	h.verifier.Forget(id, domain.FieldModelArtifactRef)
	_, err = h.verifier.CommitAndVerify(ctx, id, domain.FieldModelArtifactRef, "loc-a")
	require.NoError(t, err)
	assert.Equal(t, 2, h.assets.Updates)
}

func TestConsistencyVerifier_MarkerExpires(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, false)
	ctx := context.Background()
	now := time.Now()
	h.verifier.now = func() time.Time { return now }

	_, err := h.verifier.CommitAndVerify(ctx, id, domain.FieldModelArtifactRef, "loc-a")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = h.verifier.CommitAndVerify(ctx, id, domain.FieldModelArtifactRef, "loc-a")
	require.NoError(t, err)
	assert.Equal(t, 2, h.assets.Updates)
}

func TestConsistencyVerifier_ConcurrentIdenticalCommitsShareWrite(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, false)
	h.assets.Lag = 1

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.verifier.CommitAndVerify(context.Background(), id, domain.FieldModelArtifactRef, "shared")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, "shared", h.assets.Snapshot(id).ModelArtifactRef)
	assert.LessOrEqual(t, h.assets.Updates, 8)
}

func TestConsistencyVerifier_CancelStopsVerification(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, false)
	h.assets.Lag = 100

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.verifier.CommitAndVerify(ctx, id, domain.FieldModelArtifactRef, "loc")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsistencyVerifier_CancelledCallerLeavesSharedCommitRunning(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, false)
	h.assets.Lag = 1

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	h.verifier.sleep = func(ctx context.Context, _ time.Duration) error {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	waiters := func() int {
		h.verifier.mu.Lock()
		defer h.verifier.mu.Unlock()
		f, ok := h.verifier.flights[markerKey(id, domain.FieldModelArtifactRef)+"=shared"]
		if !ok {
			return 0
		}
		return f.waiters
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := h.verifier.CommitAndVerify(ctxA, id, domain.FieldModelArtifactRef, "shared")
		errA <- err
	}()
	<-started

	type outcome struct {
		res *CommitResult
		err error
	}
	resB := make(chan outcome, 1)
	go func() {
		res, err := h.verifier.CommitAndVerify(context.Background(), id, domain.FieldModelArtifactRef, "shared")
		resB <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return waiters() == 2 }, time.Second, time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	got := <-resB
	require.NoError(t, got.err)
	assert.Equal(t, "shared", got.res.Confirmed)
	assert.Equal(t, 1, h.assets.Updates)
	assert.Equal(t, 0, waiters())
}
