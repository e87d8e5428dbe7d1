package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"k8s.io/apimachinery/pkg/util/wait"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

type ConsistencyConfig struct {
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	MaxAttempts int
	// MarkerTTL bounds how long a confirmed write short-circuits an identical
	// follow-up commit.
	MarkerTTL time.Duration
}

func DefaultConsistencyConfig() ConsistencyConfig {
	return ConsistencyConfig{
		BaseDelay:   500 * time.Millisecond,
		Factor:      1.5,
		MaxDelay:    5 * time.Second,
		MaxAttempts: 5,
		MarkerTTL:   10 * time.Second,
	}
}

type CommitResult struct {
	Confirmed string        `json:"confirmed"`
	Attempts  int           `json:"attempts"`
	Asset     *domain.Asset `json:"-"`
}

// sharedCommit is the detached context one in-flight commit runs under. It is
// cancelled once every caller waiting on it has gone.
type sharedCommit struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type writeMarker struct {
	value     string
	result    *CommitResult
	expiresAt time.Time
}

// ConsistencyVerifier writes an artifact pointer and re-reads the asset until
// the write is visible, tolerating replica lag on the record store.
type ConsistencyVerifier struct {
	assets  ports.AssetRepository
	cfg     ConsistencyConfig
	metrics ports.Recorder

	inflight singleflight.Group
	mu       sync.Mutex
	markers  map[string]writeMarker
	flights  map[string]*sharedCommit

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewConsistencyVerifier(assets ports.AssetRepository, cfg ConsistencyConfig, metrics ports.Recorder) *ConsistencyVerifier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConsistencyConfig().MaxAttempts
	}
	if cfg.Factor <= 0 {
		cfg.Factor = 1
	}
	if metrics == nil {
		metrics = ports.NopRecorder{}
	}
	return &ConsistencyVerifier{
		assets:  assets,
		cfg:     cfg,
		metrics: metrics,
		markers: make(map[string]writeMarker),
		flights: make(map[string]*sharedCommit),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// CommitAndVerify writes expected into field, bumping the artifact token,
// and returns once a read reflects it. Concurrent identical commits share one
// write. Cancelling ctx releases this caller only; verification stops once
// no caller is left waiting, and the issued write is never undone.
func (v *ConsistencyVerifier) CommitAndVerify(ctx context.Context, assetID uuid.UUID, field domain.AssetField, expected string) (*CommitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := markerKey(assetID, field)
	if res, ok := v.confirmed(key, expected); ok {
		return res, nil
	}

	flightKey := key + "=" + expected
	shared := v.join(ctx, flightKey)
	defer v.leave(flightKey, shared)

	ch := v.inflight.DoChan(flightKey, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(shared.ctx, v.commitTimeout())
		defer cancel()
		return v.commit(cctx, assetID, field, expected)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*CommitResult), nil
	}
}

func (v *ConsistencyVerifier) join(ctx context.Context, flightKey string) *sharedCommit {
	v.mu.Lock()
	defer v.mu.Unlock()
	f, ok := v.flights[flightKey]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &sharedCommit{ctx: fctx, cancel: cancel}
		v.flights[flightKey] = f
	}
	f.waiters++
	return f
}

func (v *ConsistencyVerifier) leave(flightKey string, f *sharedCommit) {
	v.mu.Lock()
	defer v.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if v.flights[flightKey] == f {
		delete(v.flights, flightKey)
		// later callers must not attach to the cancelled run
		v.inflight.Forget(flightKey)
	}
}

// commitTimeout bounds a shared commit: every verification read at the
// longest backoff step, plus slack for the writes themselves.
func (v *ConsistencyVerifier) commitTimeout() time.Duration {
	step := v.cfg.MaxDelay
	if step < v.cfg.BaseDelay {
		step = v.cfg.BaseDelay
	}
	return time.Duration(v.cfg.MaxAttempts+1)*step + commitSlack
}

const commitSlack = 30 * time.Second

func (v *ConsistencyVerifier) commit(ctx context.Context, assetID uuid.UUID, field domain.AssetField, expected string) (*CommitResult, error) {
	logger := log.WithFields(log.Fields{
		"asset_id": assetID,
		"field":    field,
		"expected": expected,
	})

	patch := domain.AssetPatch{BumpArtifactToken: true}.WithField(field, expected)
	written, err := v.assets.Update(ctx, assetID, patch)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", field, err)
	}

	backoff := wait.Backoff{
		Duration: v.cfg.BaseDelay,
		Factor:   v.cfg.Factor,
		Steps:    v.cfg.MaxAttempts,
		Cap:      v.cfg.MaxDelay,
	}

	var observed string
	attempts := 0
	for attempts < v.cfg.MaxAttempts {
		attempts++
		if err := v.sleep(ctx, backoff.Step()); err != nil {
			return nil, err
		}
		asset, err := v.assets.Get(ctx, assetID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.WithError(err).WithField("attempts", attempts).Debug("verification read failed")
			continue
		}
		observed = asset.FieldValue(field)
		if observed == expected {
			return v.confirm(assetID, field, expected, attempts, pickNewer(asset, written)), nil
		}
		logger.WithFields(log.Fields{"attempts": attempts, "observed": observed}).Debug("write not yet visible")
	}

	logger.WithField("attempts", attempts).Warn("write not visible after retries, rewriting")
	if _, err := v.assets.Update(ctx, assetID, domain.AssetPatch{}.WithField(field, expected)); err != nil {
		logger.WithError(err).Warn("corrective rewrite failed")
	}
	attempts++
	if err := v.sleep(ctx, backoff.Step()); err != nil {
		return nil, err
	}
	asset, err := v.assets.Get(ctx, assetID)
	if err == nil {
		observed = asset.FieldValue(field)
		if observed == expected {
			return v.confirm(assetID, field, expected, attempts, pickNewer(asset, written)), nil
		}
	}

	v.metrics.VerificationFinished(field, attempts, false)
	return nil, &domain.ConsistencyError{
		AssetID:  assetID.String(),
		Field:    field,
		Expected: expected,
		Observed: observed,
		Attempts: attempts,
	}
}

func (v *ConsistencyVerifier) confirm(assetID uuid.UUID, field domain.AssetField, value string, attempts int, asset *domain.Asset) *CommitResult {
	res := &CommitResult{Confirmed: value, Attempts: attempts, Asset: asset}
	v.metrics.VerificationFinished(field, attempts, true)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.pruneLocked()
	if v.cfg.MarkerTTL > 0 {
		v.markers[markerKey(assetID, field)] = writeMarker{
			value:     value,
			result:    res,
			expiresAt: v.now().Add(v.cfg.MarkerTTL),
		}
	}
	return res
}

func (v *ConsistencyVerifier) confirmed(key, value string) (*CommitResult, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pruneLocked()
	m, ok := v.markers[key]
	if !ok || m.value != value {
		return nil, false
	}
	return m.result, true
}

// Forget drops the write marker for a field so the next commit is verified
// from scratch.
func (v *ConsistencyVerifier) Forget(assetID uuid.UUID, field domain.AssetField) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.markers, markerKey(assetID, field))
}

func (v *ConsistencyVerifier) pruneLocked() {
	now := v.now()
	for k, m := range v.markers {
		if now.After(m.expiresAt) {
			delete(v.markers, k)
		}
	}
}

func markerKey(assetID uuid.UUID, field domain.AssetField) string {
	return assetID.String() + "/" + string(field)
}

// pickNewer prefers whichever snapshot carries the higher artifact token; the
// verification read can come from a replica that lags the write.
func pickNewer(read, written *domain.Asset) *domain.Asset {
	if written != nil && (read == nil || written.ArtifactToken > read.ArtifactToken) {
		return written
	}
	return read
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
