package testutil

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

// MockAssetRepo is a mock of AssetRepository.
type MockAssetRepo struct {
	mock.Mock
}

func (m *MockAssetRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

func (m *MockAssetRepo) GetPrimary(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

func (m *MockAssetRepo) Update(ctx context.Context, id uuid.UUID, patch domain.AssetPatch) (*domain.Asset, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

// MockFeedbackRepo is a mock of FeedbackRepository.
type MockFeedbackRepo struct {
	mock.Mock
}

func (m *MockFeedbackRepo) Create(ctx context.Context, item *domain.FeedbackItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockFeedbackRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FeedbackItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeedbackItem), args.Error(1)
}

func (m *MockFeedbackRepo) List(ctx context.Context, filter ports.FeedbackFilter) ([]*domain.FeedbackItem, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FeedbackItem), args.Error(1)
}

func (m *MockFeedbackRepo) ListReplies(ctx context.Context, parentIDs []uuid.UUID) ([]*domain.FeedbackItem, error) {
	args := m.Called(ctx, parentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FeedbackItem), args.Error(1)
}

func (m *MockFeedbackRepo) MarkSuperseded(ctx context.Context, assetID uuid.UUID) (int64, error) {
	args := m.Called(ctx, assetID)
	return args.Get(0).(int64), args.Error(1)
}

// MockStatusHistoryRepo is a mock of StatusHistoryRepository.
type MockStatusHistoryRepo struct {
	mock.Mock
}

func (m *MockStatusHistoryRepo) Append(ctx context.Context, change *domain.StatusChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *MockStatusHistoryRepo) ListByAsset(ctx context.Context, assetID uuid.UUID) ([]*domain.StatusChange, error) {
	args := m.Called(ctx, assetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StatusChange), args.Error(1)
}

// MockAssignmentRepo is a mock of AssignmentRepository.
type MockAssignmentRepo struct {
	mock.Mock
}

func (m *MockAssignmentRepo) MarkCompleted(ctx context.Context, assetID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, assetID, at)
	return args.Error(0)
}

// MockObjectStore is a mock of ObjectStore.
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, key, body, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) Copy(ctx context.Context, srcLocator, dstKey string) (string, error) {
	args := m.Called(ctx, srcLocator, dstKey)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	args := m.Called(ctx, locator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockObjectStore) Stat(ctx context.Context, locator string) (ports.ObjectInfo, error) {
	args := m.Called(ctx, locator)
	return args.Get(0).(ports.ObjectInfo), args.Error(1)
}

func (m *MockObjectStore) Delete(ctx context.Context, locator string) error {
	args := m.Called(ctx, locator)
	return args.Error(0)
}

// MockReviewEngine is a mock of ReviewEngine.
type MockReviewEngine struct {
	mock.Mock
}

func (m *MockReviewEngine) RunReview(ctx context.Context, modelLocator string, referenceImages []string) (bool, error) {
	args := m.Called(ctx, modelLocator, referenceImages)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher is a mock of EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockTriggerLock is a mock of TriggerLock.
type MockTriggerLock struct {
	mock.Mock
}

func (m *MockTriggerLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockTriggerLock) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
