package testutil

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

// FakeAssetStore is an in-memory AssetRepository. With Lag > 0, the Lag reads
// following a write return the record as it was before the write, the way a
// lagging replica would.
type FakeAssetStore struct {
	mu         sync.Mutex
	assets     map[uuid.UUID]domain.Asset
	stale      map[uuid.UUID]domain.Asset
	staleReads map[uuid.UUID]int

	Lag     int
	Updates int
	Reads   int
}

func NewFakeAssetStore() *FakeAssetStore {
	return &FakeAssetStore{
		assets:     make(map[uuid.UUID]domain.Asset),
		stale:      make(map[uuid.UUID]domain.Asset),
		staleReads: make(map[uuid.UUID]int),
	}
}

// Seed stores a copy of a without lag and returns its id.
func (f *FakeAssetStore) Seed(a domain.Asset) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = domain.StatusNotStarted
	}
	if a.QAVerdict == "" {
		a.QAVerdict = domain.VerdictUnknown
	}
	f.assets[a.ID] = a
	return a.ID
}

// Snapshot returns the primary copy, bypassing lag.
func (f *FakeAssetStore) Snapshot(id uuid.UUID) domain.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assets[id]
}

func (f *FakeAssetStore) Get(_ context.Context, id uuid.UUID) (*domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if n := f.staleReads[id]; n > 0 {
		f.staleReads[id] = n - 1
		a := f.stale[id]
		return &a, nil
	}
	a, ok := f.assets[id]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	return &a, nil
}

// GetPrimary returns the primary copy and does not consume lagging reads.
func (f *FakeAssetStore) GetPrimary(_ context.Context, id uuid.UUID) (*domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	return &a, nil
}

func (f *FakeAssetStore) Update(_ context.Context, id uuid.UUID, patch domain.AssetPatch) (*domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	if patch.ExpectedRowVersion != nil && *patch.ExpectedRowVersion != a.RowVersion {
		return nil, domain.ErrStaleAsset
	}
	f.Updates++

	if f.Lag > 0 {
		if f.staleReads[id] == 0 {
			f.stale[id] = a
		}
		f.staleReads[id] = f.Lag
	}

	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.RevisionCount != nil {
		a.RevisionCount = *patch.RevisionCount
	}
	if patch.ModelArtifactRef != nil {
		a.ModelArtifactRef = *patch.ModelArtifactRef
	}
	if patch.SourceArtifactRef != nil {
		a.SourceArtifactRef = *patch.SourceArtifactRef
	}
	if patch.QAVerdict != nil {
		a.QAVerdict = *patch.QAVerdict
	}
	if patch.BumpArtifactToken {
		a.ArtifactToken++
	}
	a.RowVersion++
	a.UpdatedAt = time.Now().UTC()
	f.assets[id] = a
	return &a, nil
}

// FakeFeedbackStore is an in-memory FeedbackRepository.
type FakeFeedbackStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]domain.FeedbackItem
}

func NewFakeFeedbackStore() *FakeFeedbackStore {
	return &FakeFeedbackStore{items: make(map[uuid.UUID]domain.FeedbackItem)}
}

func (f *FakeFeedbackStore) Create(_ context.Context, item *domain.FeedbackItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = *item
	return nil
}

func (f *FakeFeedbackStore) GetByID(_ context.Context, id uuid.UUID) (*domain.FeedbackItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, domain.ErrFeedbackNotFound
	}
	return &item, nil
}

func (f *FakeFeedbackStore) List(_ context.Context, filter ports.FeedbackFilter) ([]*domain.FeedbackItem, error) {
	return f.collect(func(item domain.FeedbackItem) bool {
		if item.AssetID != filter.AssetID {
			return false
		}
		return filter.Revision == nil || item.RevisionNumber == *filter.Revision
	}), nil
}

func (f *FakeFeedbackStore) ListReplies(_ context.Context, parentIDs []uuid.UUID) ([]*domain.FeedbackItem, error) {
	want := make(map[uuid.UUID]bool, len(parentIDs))
	for _, id := range parentIDs {
		want[id] = true
	}
	return f.collect(func(item domain.FeedbackItem) bool {
		return item.ParentID != nil && want[*item.ParentID]
	}), nil
}

func (f *FakeFeedbackStore) MarkSuperseded(_ context.Context, assetID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, item := range f.items {
		if item.AssetID == assetID && !item.IsSuperseded {
			item.IsSuperseded = true
			f.items[id] = item
			n++
		}
	}
	return n, nil
}

// All returns every stored item, including replies and superseded ones.
func (f *FakeFeedbackStore) All(assetID uuid.UUID) []*domain.FeedbackItem {
	return f.collect(func(item domain.FeedbackItem) bool { return item.AssetID == assetID })
}

func (f *FakeFeedbackStore) collect(keep func(domain.FeedbackItem) bool) []*domain.FeedbackItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.FeedbackItem
	for _, item := range f.items {
		if keep(item) {
			it := item
			out = append(out, &it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// FakeVersionRepo is an in-memory ArtifactVersionRepository.
type FakeVersionRepo struct {
	mu       sync.Mutex
	versions []domain.ArtifactVersion
}

func NewFakeVersionRepo() *FakeVersionRepo {
	return &FakeVersionRepo{}
}

func (f *FakeVersionRepo) Create(_ context.Context, v *domain.ArtifactVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.versions {
		if existing.AssetID == v.AssetID && existing.Locator == v.Locator {
			return domain.ErrDuplicateBackup
		}
	}
	f.versions = append(f.versions, *v)
	return nil
}

func (f *FakeVersionRepo) FindBackup(_ context.Context, assetID uuid.UUID, kind domain.FileKind, groupKey, sourceLocator string) (*domain.ArtifactVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions {
		if v.AssetID != assetID || v.FileKind != kind {
			continue
		}
		if v.GroupKey == groupKey || v.SourceLocator == sourceLocator {
			found := v
			return &found, nil
		}
	}
	return nil, domain.ErrVersionNotFound
}

func (f *FakeVersionRepo) GetByLocator(_ context.Context, assetID uuid.UUID, locator string) (*domain.ArtifactVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions {
		if v.AssetID == assetID && v.Locator == locator {
			found := v
			return &found, nil
		}
	}
	return nil, domain.ErrVersionNotFound
}

func (f *FakeVersionRepo) ListByAsset(_ context.Context, assetID uuid.UUID) ([]*domain.ArtifactVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ArtifactVersion
	for _, v := range f.versions {
		if v.AssetID == assetID {
			found := v
			out = append(out, &found)
		}
	}
	return out, nil
}

func (f *FakeVersionRepo) Delete(_ context.Context, assetID uuid.UUID, locator string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range f.versions {
		if v.AssetID == assetID && v.Locator == locator {
			f.versions = append(f.versions[:i], f.versions[i+1:]...)
			return nil
		}
	}
	return domain.ErrVersionNotFound
}

func (f *FakeVersionRepo) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.versions)
}

const fakeStorePrefix = "mem://artifacts/"

// FakeObjectStore keeps objects in memory. Errs injects a failure per
// operation name ("put", "copy", "get", "stat", "delete").
type FakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	Errs    map[string]error
}

func NewFakeObjectStore() *FakeObjectStore {
	return &FakeObjectStore{objects: make(map[string][]byte), Errs: make(map[string]error)}
}

func (f *FakeObjectStore) Locator(key string) string {
	return fakeStorePrefix + key
}

// SeedObject stores data under key and returns its locator.
func (f *FakeObjectStore) SeedObject(key string, data []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return f.Locator(key)
}

func (f *FakeObjectStore) Bytes(locator string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[strings.TrimPrefix(locator, fakeStorePrefix)]
	return b, ok
}

func (f *FakeObjectStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *FakeObjectStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if err := f.err("put"); err != nil {
		return "", err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return f.SeedObject(key, data), nil
}

func (f *FakeObjectStore) Copy(_ context.Context, srcLocator, dstKey string) (string, error) {
	if err := f.err("copy"); err != nil {
		return "", err
	}
	data, ok := f.Bytes(srcLocator)
	if !ok {
		return "", domain.ErrObjectNotFound
	}
	return f.SeedObject(dstKey, append([]byte(nil), data...)), nil
}

func (f *FakeObjectStore) Get(_ context.Context, locator string) (io.ReadCloser, error) {
	if err := f.err("get"); err != nil {
		return nil, err
	}
	data, ok := f.Bytes(locator)
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *FakeObjectStore) Stat(_ context.Context, locator string) (ports.ObjectInfo, error) {
	if err := f.err("stat"); err != nil {
		return ports.ObjectInfo{}, err
	}
	data, ok := f.Bytes(locator)
	if !ok {
		return ports.ObjectInfo{}, domain.ErrObjectNotFound
	}
	return ports.ObjectInfo{Locator: locator, Size: int64(len(data))}, nil
}

func (f *FakeObjectStore) Delete(_ context.Context, locator string) error {
	if err := f.err("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(locator, fakeStorePrefix)
	if _, ok := f.objects[key]; !ok {
		return domain.ErrObjectNotFound
	}
	delete(f.objects, key)
	return nil
}

func (f *FakeObjectStore) err(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Errs[op]
}

// FakeStatusHistory records appended status changes.
type FakeStatusHistory struct {
	mu      sync.Mutex
	changes []*domain.StatusChange
}

func (f *FakeStatusHistory) Append(_ context.Context, change *domain.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, change)
	return nil
}

func (f *FakeStatusHistory) ListByAsset(_ context.Context, assetID uuid.UUID) ([]*domain.StatusChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.StatusChange
	for _, c := range f.changes {
		if c.AssetID == assetID {
			out = append(out, c)
		}
	}
	return out, nil
}

// EventRecorder is an EventPublisher that keeps what it was given.
type EventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *EventRecorder) Publish(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *EventRecorder) Types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
