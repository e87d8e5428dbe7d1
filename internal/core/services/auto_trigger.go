package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

type AutoTriggerConfig struct {
	SettleDelay time.Duration
	// ProbeOnArm confirms the artifact is retrievable with a store Stat
	// instead of waiting for a viewer to report it loaded.
	ProbeOnArm    bool
	LockTTL       time.Duration
	MaxLagRetries int
}

func DefaultAutoTriggerConfig() AutoTriggerConfig {
	return AutoTriggerConfig{
		SettleDelay:   2 * time.Second,
		ProbeOnArm:    true,
		LockTTL:       10 * time.Minute,
		MaxLagRetries: 3,
	}
}

type reviewer interface {
	RunReview(ctx context.Context, assetID uuid.UUID, referenceImages []string) (domain.QAVerdict, error)
	ReviewInProgress(assetID uuid.UUID) bool
}

// triggerCycle is one upload of a model artifact, identified by the artifact
// token the upload committed.
type triggerCycle struct {
	token   int64
	locator string
	fired   bool
	timer   *time.Timer
}

// AutoTrigger starts a QA review once per model upload, after the new
// artifact is confirmed loadable and a settle delay has passed.
type AutoTrigger struct {
	assets  ports.AssetRepository
	store   ports.ObjectStore
	gate    reviewer
	lock    ports.TriggerLock
	metrics ports.Recorder
	cfg     AutoTriggerConfig

	mu     sync.Mutex
	cycles map[uuid.UUID]*triggerCycle
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAutoTrigger(assets ports.AssetRepository, store ports.ObjectStore, gate *QAGate, lock ports.TriggerLock, metrics ports.Recorder, cfg AutoTriggerConfig) *AutoTrigger {
	return newAutoTrigger(assets, store, gate, lock, metrics, cfg)
}

func newAutoTrigger(assets ports.AssetRepository, store ports.ObjectStore, gate reviewer, lock ports.TriggerLock, metrics ports.Recorder, cfg AutoTriggerConfig) *AutoTrigger {
	if lock == nil {
		lock = NewLocalTriggerLock()
	}
	if metrics == nil {
		metrics = ports.NopRecorder{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AutoTrigger{
		assets:  assets,
		store:   store,
		gate:    gate,
		lock:    lock,
		metrics: metrics,
		cfg:     cfg,
		cycles:  make(map[uuid.UUID]*triggerCycle),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Arm opens a new cycle for the asset, replacing any previous one.
func (t *AutoTrigger) Arm(assetID uuid.UUID, token int64, locator string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if prev, ok := t.cycles[assetID]; ok && prev.timer != nil {
		prev.timer.Stop()
	}
	t.cycles[assetID] = &triggerCycle{token: token, locator: locator}
	t.mu.Unlock()

	log.WithFields(log.Fields{
		"asset_id": assetID,
		"token":    token,
	}).Debug("auto trigger armed")

	if !t.cfg.ProbeOnArm || t.store == nil {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if _, err := t.store.Stat(t.ctx, locator); err != nil {
			log.WithError(err).WithField("asset_id", assetID).Warn("artifact probe failed, waiting for viewer confirmation")
			return
		}
		t.ConfirmLoaded(assetID, token)
	}()
}

// ConfirmLoaded reports the artifact for token as loadable. Repeated
// confirmations restart the settle delay; confirmations for a token older
// than the cycle are ignored. A later token is accepted because source writes
// move the token without replacing the model. It reports whether the
// confirmation was accepted.
func (t *AutoTrigger) ConfirmLoaded(assetID uuid.UUID, token int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	c, ok := t.cycles[assetID]
	if !ok || token < c.token || c.fired {
		return false
	}
	token = c.token
	if c.timer != nil {
		if !c.timer.Reset(t.cfg.SettleDelay) {
			// expired timers run their func again after Reset
			t.wg.Add(1)
		}
		return true
	}
	t.wg.Add(1)
	c.timer = time.AfterFunc(t.cfg.SettleDelay, func() {
		defer t.wg.Done()
		t.fire(assetID, token)
	})
	return true
}

// Invalidate drops the asset's pending cycle.
func (t *AutoTrigger) Invalidate(assetID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropLocked(assetID)
}

func (t *AutoTrigger) Pending(assetID uuid.UUID) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.cycles[assetID]
	if !ok || c.fired {
		return 0, false
	}
	return c.token, true
}

// Close stops pending timers and waits for running reviews to return.
func (t *AutoTrigger) Close() {
	t.mu.Lock()
	t.closed = true
	for id := range t.cycles {
		t.dropLocked(id)
	}
	t.mu.Unlock()
	t.cancel()
	t.wg.Wait()
}

func (t *AutoTrigger) dropLocked(assetID uuid.UUID) {
	c, ok := t.cycles[assetID]
	if !ok {
		return
	}
	if c.timer != nil && c.timer.Stop() {
		// the timer func will never run, so balance its Add here
		t.wg.Done()
	}
	delete(t.cycles, assetID)
}

func (t *AutoTrigger) claim(assetID uuid.UUID, token int64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.cycles[assetID]
	if !ok || c.token != token || c.fired {
		return "", false
	}
	c.fired = true
	c.timer = nil
	return c.locator, true
}

func (t *AutoTrigger) release(assetID uuid.UUID, token int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.cycles[assetID]; ok && c.token == token {
		c.fired = false
	}
}

func (t *AutoTrigger) fire(assetID uuid.UUID, token int64) {
	locator, ok := t.claim(assetID, token)
	if !ok {
		return
	}
	logger := log.WithFields(log.Fields{
		"asset_id": assetID,
		"token":    token,
	})

	asset, err := t.currentAsset(assetID, token, locator)
	if err != nil {
		logger.WithError(err).Info("auto trigger abandoned")
		return
	}
	if reason := t.skipReason(asset); reason != "" {
		logger.WithField("reason", reason).Info("auto trigger skipped")
		return
	}

	key := fmt.Sprintf("qa-trigger:%s:%d", assetID, token)
	ok, err = t.lock.Acquire(t.ctx, key, t.cfg.LockTTL)
	if err != nil {
		logger.WithError(err).Warn("acquire trigger lock failed")
		t.release(assetID, token)
		return
	}
	if !ok {
		logger.Info("qa review already triggered elsewhere")
		return
	}

	t.metrics.AutoTriggerFired()
	logger.Info("auto triggering qa review")
	verdict, err := t.gate.RunReview(t.ctx, assetID, nil)
	if err != nil {
		logger.WithError(err).Warn("automatic qa review failed")
		if errors.Is(err, domain.ErrReviewInProgress) {
			return
		}
		// a failed review does not use up the cycle
		if rerr := t.lock.Release(context.Background(), key); rerr != nil {
			logger.WithError(rerr).Warn("release trigger lock failed")
		}
		t.release(assetID, token)
		return
	}
	logger.WithField("verdict", verdict).Info("automatic qa review finished")
}

// currentAsset reads the asset until the record reflects the cycle's model.
// A record at or past token holding another model means a later upload
// replaced this cycle.
func (t *AutoTrigger) currentAsset(assetID uuid.UUID, token int64, locator string) (*domain.Asset, error) {
	for i := 0; ; i++ {
		asset, err := t.assets.Get(t.ctx, assetID)
		if err != nil {
			return nil, err
		}
		switch {
		case asset.ModelArtifactRef == locator:
			return asset, nil
		case asset.ArtifactToken >= token:
			return nil, fmt.Errorf("cycle superseded at token %d", asset.ArtifactToken)
		case i >= t.cfg.MaxLagRetries:
			return nil, fmt.Errorf("record still at token %d", asset.ArtifactToken)
		}
		if err := sleepContext(t.ctx, t.cfg.SettleDelay); err != nil {
			return nil, err
		}
	}
}

func (t *AutoTrigger) skipReason(asset *domain.Asset) string {
	switch {
	case asset.ModelArtifactRef == "":
		return "no model artifact"
	case asset.QAVerdict != domain.VerdictUnknown:
		return "verdict already set"
	case asset.Status == domain.StatusDeliveredByArtist:
		return "already delivered"
	case t.gate.ReviewInProgress(asset.ID):
		return "review in progress"
	}
	return ""
}
