package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/testutil"
)

var testAssetID = uuid.MustParse("6f1c2a7e-3b44-4d2a-9a51-0c7d2e9b8f10")

// tickClock advances one second per call so every backup gets its own slot.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTickClock() *tickClock {
	return &tickClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type harness struct {
	assets   *testutil.FakeAssetStore
	feedback *testutil.FakeFeedbackStore
	versions *testutil.FakeVersionRepo
	store    *testutil.FakeObjectStore
	history  *testutil.FakeStatusHistory
	events   *testutil.EventRecorder
	review   *testutil.MockReviewEngine

	vs       *VersionStore
	verifier *ConsistencyVerifier
	tracker  *RevisionTracker
	gate     *QAGate
	trigger  *AutoTrigger
	uploads  *UploadOrchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		assets:   testutil.NewFakeAssetStore(),
		feedback: testutil.NewFakeFeedbackStore(),
		versions: testutil.NewFakeVersionRepo(),
		store:    testutil.NewFakeObjectStore(),
		history:  &testutil.FakeStatusHistory{},
		events:   &testutil.EventRecorder{},
		review:   new(testutil.MockReviewEngine),
	}
	clock := newTickClock()

	h.vs = NewVersionStore(h.store, h.versions, h.assets, nil)
	h.vs.now = clock.Now

	h.verifier = NewConsistencyVerifier(h.assets, ConsistencyConfig{
		BaseDelay:   time.Millisecond,
		Factor:      1,
		MaxDelay:    time.Millisecond,
		MaxAttempts: 5,
		MarkerTTL:   time.Minute,
	}, nil)
	h.verifier.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	h.tracker = NewRevisionTracker(h.assets, h.feedback)
	h.gate = NewQAGate(h.assets, h.review, h.history, nil, h.events, nil)
	h.trigger = NewAutoTrigger(h.assets, h.store, h.gate, NewLocalTriggerLock(), nil, AutoTriggerConfig{
		SettleDelay:   5 * time.Millisecond,
		LockTTL:       time.Minute,
		MaxLagRetries: 2,
	})
	t.Cleanup(h.trigger.Close)

	h.uploads = NewUploadOrchestrator(h.assets, h.store, h.vs, h.verifier, h.tracker, h.gate, h.trigger, nil, DefaultUploadLimits())
	h.uploads.now = clock.Now
	return h
}

// seedAsset creates an asset for article "abc123" with live model and source
// files when withFiles is set.
func (h *harness) seedAsset(t *testing.T, status domain.AssetStatus, withFiles bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	a := domain.Asset{ID: id, ArticleID: "abc123", Status: status}
	if withFiles {
		a.ModelArtifactRef = h.store.SeedObject("assets/"+id.String()+"/model/1/abc123.glb", []byte("glTF-original-model"))
		a.SourceArtifactRef = h.store.SeedObject("assets/"+id.String()+"/source/1/abc123.blend", []byte("BLENDER-original-source"))
	}
	require.Equal(t, id, h.assets.Seed(a))
	return id
}
