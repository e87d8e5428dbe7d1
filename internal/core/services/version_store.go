package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

type BackupResult struct {
	Status  domain.BackupStatus `json:"status"`
	Locator string              `json:"locator,omitempty"`
}

// VersionStore keeps backup copies of artifacts next to the live ones.
type VersionStore struct {
	store    ports.ObjectStore
	versions ports.ArtifactVersionRepository
	assets   ports.AssetRepository
	metrics  ports.Recorder
	locks    *kindLocks
	now      func() time.Time
}

func NewVersionStore(store ports.ObjectStore, versions ports.ArtifactVersionRepository, assets ports.AssetRepository, metrics ports.Recorder) *VersionStore {
	if metrics == nil {
		metrics = ports.NopRecorder{}
	}
	return &VersionStore{
		store:    store,
		versions: versions,
		assets:   assets,
		metrics:  metrics,
		locks:    newKindLocks(),
		now:      time.Now,
	}
}

// Backup copies currentLocator into the backup slot for sharedTimestamp.
// A second call for the same slot or the same live locator is skipped.
func (s *VersionStore) Backup(ctx context.Context, assetID uuid.UUID, kind domain.FileKind, currentLocator string, sharedTimestamp int64) (*BackupResult, error) {
	unlock := s.locks.lock(assetID, kind)
	defer unlock()
	return s.backupLocked(ctx, assetID, kind, currentLocator, sharedTimestamp)
}

func (s *VersionStore) backupLocked(ctx context.Context, assetID uuid.UUID, kind domain.FileKind, currentLocator string, sharedTimestamp int64) (*BackupResult, error) {
	if currentLocator == "" {
		return nil, domain.ErrInvalidLocator
	}
	groupKey := strconv.FormatInt(sharedTimestamp, 10)

	existing, err := s.versions.FindBackup(ctx, assetID, kind, groupKey, currentLocator)
	if err != nil && !errors.Is(err, domain.ErrVersionNotFound) {
		return nil, fmt.Errorf("find backup: %w", err)
	}
	if existing != nil {
		s.metrics.BackupFinished(kind, string(domain.BackupSkipped))
		return &BackupResult{Status: domain.BackupSkipped, Locator: existing.Locator}, nil
	}

	info, err := s.store.Stat(ctx, currentLocator)
	if err != nil {
		return nil, &domain.StorageError{Op: "stat", Locator: currentLocator, Err: err}
	}
	if info.Size == 0 {
		log.WithFields(log.Fields{
			"asset_id":  assetID,
			"file_kind": kind,
			"locator":   currentLocator,
		}).Warn("current artifact is empty, skipping backup")
		s.metrics.BackupFinished(kind, string(domain.BackupSkipped))
		return &BackupResult{Status: domain.BackupSkipped}, nil
	}

	locator, err := s.store.Copy(ctx, currentLocator, backupKey(assetID, kind, currentLocator, sharedTimestamp))
	if err != nil {
		return nil, &domain.StorageError{Op: "copy", Locator: currentLocator, Err: err}
	}

	version := &domain.ArtifactVersion{
		ID:            uuid.New(),
		AssetID:       assetID,
		FileKind:      kind,
		Locator:       locator,
		SourceLocator: currentLocator,
		SizeBytes:     info.Size,
		IsBackup:      true,
		GroupKey:      groupKey,
		LastModified:  s.now().UTC(),
	}
	if err := s.versions.Create(ctx, version); err != nil {
		if errors.Is(err, domain.ErrDuplicateBackup) {
			s.metrics.BackupFinished(kind, string(domain.BackupSkipped))
			return &BackupResult{Status: domain.BackupSkipped, Locator: locator}, nil
		}
		return nil, fmt.Errorf("record backup: %w", err)
	}

	log.WithFields(log.Fields{
		"asset_id":  assetID,
		"file_kind": kind,
		"locator":   locator,
		"group_key": groupKey,
	}).Info("artifact backed up")
	s.metrics.BackupFinished(kind, string(domain.BackupCreated))
	return &BackupResult{Status: domain.BackupCreated, Locator: locator}, nil
}

// Restore copies a backup into a fresh canonical slot and returns its
// locator. The asset record is left for the caller to update.
func (s *VersionStore) Restore(ctx context.Context, assetID uuid.UUID, backupLocator string, kind domain.FileKind) (string, error) {
	unlock := s.locks.lock(assetID, kind)
	defer unlock()
	return s.restoreLocked(ctx, assetID, backupLocator, kind)
}

func (s *VersionStore) restoreLocked(ctx context.Context, assetID uuid.UUID, backupLocator string, kind domain.FileKind) (string, error) {
	version, err := s.backupRecord(ctx, assetID, backupLocator)
	if err != nil {
		return "", err
	}
	if version.FileKind != kind {
		return "", &domain.ValidationError{Field: "file_kind", Reason: "backup holds a different file kind", Expected: string(version.FileKind), Actual: string(kind)}
	}

	key := canonicalKey(assetID, kind, s.now().UnixMilli(), restoredName(backupLocator))
	locator, err := s.store.Copy(ctx, backupLocator, key)
	if err != nil {
		return "", &domain.StorageError{Op: "restore", Locator: backupLocator, Err: err}
	}
	return locator, nil
}

// Delete removes a backup. The live locator of either kind is protected.
func (s *VersionStore) Delete(ctx context.Context, assetID uuid.UUID, locator string) error {
	if locator == "" {
		return domain.ErrInvalidLocator
	}
	asset, err := s.assets.Get(ctx, assetID)
	if err != nil {
		return err
	}
	if locator == asset.ModelArtifactRef || locator == asset.SourceArtifactRef {
		return &domain.ProtectedError{Locator: locator}
	}

	// Only recorded backups can be deleted, and backup keys never collide
	// with canonical keys, so a stale asset read cannot expose the live file.
	version, err := s.backupRecord(ctx, assetID, locator)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(assetID, version.FileKind)
	defer unlock()

	if err := s.store.Delete(ctx, locator); err != nil && !errors.Is(err, domain.ErrObjectNotFound) {
		return &domain.StorageError{Op: "delete", Locator: locator, Err: err}
	}
	if err := s.versions.Delete(ctx, assetID, locator); err != nil {
		return fmt.Errorf("delete backup record: %w", err)
	}

	log.WithFields(log.Fields{
		"asset_id": assetID,
		"locator":  locator,
	}).Info("artifact version deleted")
	return nil
}

// DeleteAll removes every backup of the asset, optionally limited to one
// file kind, and reports how many were deleted.
func (s *VersionStore) DeleteAll(ctx context.Context, assetID uuid.UUID, kind *domain.FileKind) (int, error) {
	versions, err := s.versions.ListByAsset(ctx, assetID)
	if err != nil {
		return 0, fmt.Errorf("list backups: %w", err)
	}

	var (
		deleted int
		errs    []error
	)
	for _, v := range versions {
		if kind != nil && v.FileKind != *kind {
			continue
		}
		err := s.Delete(ctx, assetID, v.Locator)
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, domain.ErrProtected):
		default:
			errs = append(errs, err)
		}
	}
	return deleted, errors.Join(errs...)
}

// List returns the live versions followed by every recorded backup.
func (s *VersionStore) List(ctx context.Context, assetID uuid.UUID) ([]domain.ArtifactVersion, error) {
	asset, err := s.assets.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}

	var out []domain.ArtifactVersion
	for _, kind := range []domain.FileKind{domain.FileKindModel, domain.FileKindSource} {
		ref := asset.Ref(kind)
		if ref == "" {
			continue
		}
		current := domain.ArtifactVersion{
			AssetID:      assetID,
			FileKind:     kind,
			Locator:      ref,
			IsCurrent:    true,
			GroupKey:     domain.GroupKeyCurrent,
			LastModified: asset.UpdatedAt,
		}
		if info, err := s.store.Stat(ctx, ref); err == nil {
			current.SizeBytes = info.Size
			if !info.LastModified.IsZero() {
				current.LastModified = info.LastModified
			}
		} else {
			log.WithError(err).WithField("locator", ref).Debug("stat current artifact failed")
		}
		out = append(out, current)
	}

	backups, err := s.versions.ListByAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	for _, b := range backups {
		out = append(out, *b)
	}
	return out, nil
}

func (s *VersionStore) GroupAndFilter(versions []domain.ArtifactVersion) []domain.VersionGroup {
	return domain.GroupAndFilter(versions)
}

func (s *VersionStore) History(ctx context.Context, assetID uuid.UUID) ([]domain.VersionGroup, error) {
	versions, err := s.List(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return s.GroupAndFilter(versions), nil
}

func (s *VersionStore) backupRecord(ctx context.Context, assetID uuid.UUID, locator string) (*domain.ArtifactVersion, error) {
	version, err := s.versions.GetByLocator(ctx, assetID, locator)
	if err != nil {
		if errors.Is(err, domain.ErrVersionNotFound) {
			return nil, domain.ErrNotABackup
		}
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return version, nil
}
