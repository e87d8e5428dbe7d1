package services

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

type UploadLimits struct {
	ModelMaxBytes    int64
	SourceMaxBytes   int64
	ModelExtensions  []string
	SourceExtensions []string
}

func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		ModelMaxBytes:    100 << 20,
		SourceMaxBytes:   500 << 20,
		ModelExtensions:  []string{".glb", ".gltf"},
		SourceExtensions: []string{".blend"},
	}
}

func (l UploadLimits) forKind(kind domain.FileKind) (int64, []string) {
	if kind == domain.FileKindModel {
		return l.ModelMaxBytes, l.ModelExtensions
	}
	return l.SourceMaxBytes, l.SourceExtensions
}

var magicBytes = map[string][]byte{
	".glb":   []byte("glTF"),
	".blend": []byte("BLENDER"),
}

type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

type KindResult struct {
	Kind     domain.FileKind `json:"file_kind"`
	Locator  string          `json:"locator,omitempty"`
	Attempts int             `json:"attempts,omitempty"`
	Backup   *BackupResult   `json:"backup,omitempty"`
	Err      error           `json:"-"`
}

func (r *KindResult) OK() bool {
	return r != nil && r.Err == nil
}

// UploadOutcome reports each provided kind independently. A nil result means
// the kind was not part of the request.
type UploadOutcome struct {
	Model  *KindResult
	Source *KindResult
}

func (o *UploadOutcome) Results() []*KindResult {
	var out []*KindResult
	for _, r := range []*KindResult{o.Model, o.Source} {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// AllFailed reports whether no provided file made it through.
func (o *UploadOutcome) AllFailed() bool {
	for _, r := range o.Results() {
		if r.OK() {
			return false
		}
	}
	return true
}

// UploadOrchestrator stores new artifacts for an asset, backing up the files
// they replace and committing the new locators.
type UploadOrchestrator struct {
	assets    ports.AssetRepository
	store     ports.ObjectStore
	versions  *VersionStore
	verifier  *ConsistencyVerifier
	revisions *RevisionTracker
	gate      *QAGate
	trigger   *AutoTrigger
	metrics   ports.Recorder
	limits    UploadLimits
	now       func() time.Time
}

func NewUploadOrchestrator(
	assets ports.AssetRepository,
	store ports.ObjectStore,
	versions *VersionStore,
	verifier *ConsistencyVerifier,
	revisions *RevisionTracker,
	gate *QAGate,
	trigger *AutoTrigger,
	metrics ports.Recorder,
	limits UploadLimits,
) *UploadOrchestrator {
	if metrics == nil {
		metrics = ports.NopRecorder{}
	}
	return &UploadOrchestrator{
		assets:    assets,
		store:     store,
		versions:  versions,
		verifier:  verifier,
		revisions: revisions,
		gate:      gate,
		trigger:   trigger,
		metrics:   metrics,
		limits:    limits,
		now:       time.Now,
	}
}

// UploadBoth uploads the provided files concurrently. Both kinds share one
// backup timestamp so their backups land in the same version group.
func (o *UploadOrchestrator) UploadBoth(ctx context.Context, assetID uuid.UUID, model, source *UploadFile) (*UploadOutcome, error) {
	if model == nil && source == nil {
		return nil, domain.ErrNoFilesSelected
	}
	asset, err := o.assets.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}

	ts := o.now().UnixMilli()
	outcome := &UploadOutcome{}

	// Kinds fail independently, so the group never cancels its siblings.
	var g errgroup.Group
	if model != nil {
		g.Go(func() error {
			outcome.Model = o.uploadKind(ctx, asset, domain.FileKindModel, model, ts)
			return nil
		})
	}
	if source != nil {
		g.Go(func() error {
			outcome.Source = o.uploadKind(ctx, asset, domain.FileKindSource, source, ts)
			return nil
		})
	}
	_ = g.Wait()
	return outcome, nil
}

func (o *UploadOrchestrator) uploadKind(ctx context.Context, asset *domain.Asset, kind domain.FileKind, file *UploadFile, ts int64) *KindResult {
	res := &KindResult{Kind: kind}
	logger := log.WithFields(log.Fields{
		"asset_id":  asset.ID,
		"file_kind": kind,
		"file_name": file.Name,
	})

	if err := o.validate(asset, kind, file); err != nil {
		res.Err = err
		o.metrics.UploadFinished(kind, false)
		logger.WithError(err).Info("upload rejected")
		return res
	}

	unlock := o.versions.locks.lock(asset.ID, kind)
	defer unlock()

	if ref := o.liveRef(ctx, asset, kind, logger); ref != "" {
		backup, err := o.versions.backupLocked(ctx, asset.ID, kind, ref, ts)
		if err != nil {
			logger.WithError(err).Warn("backup before upload failed, continuing")
		} else {
			res.Backup = backup
		}
	}

	body := sniffMagic(file, logger)
	locator, err := o.store.Put(ctx, canonicalKey(asset.ID, kind, ts, file.Name), body, file.Size, file.ContentType)
	if err != nil {
		res.Err = &domain.StorageError{Op: "put", Locator: file.Name, Err: err}
		o.metrics.UploadFinished(kind, false)
		logger.WithError(err).Error("artifact upload failed")
		return res
	}

	commit, err := o.verifier.CommitAndVerify(ctx, asset.ID, domain.FieldForKind(kind), locator)
	if err != nil {
		res.Locator = locator
		res.Err = err
		o.metrics.UploadFinished(kind, false)
		logger.WithError(err).Error("artifact commit not confirmed")
		return res
	}
	res.Locator = commit.Confirmed
	res.Attempts = commit.Attempts

	if kind == domain.FileKindModel {
		o.afterModelCommit(ctx, asset.ID, commit)
	}
	o.metrics.UploadFinished(kind, true)
	logger.WithFields(log.Fields{
		"locator":  locator,
		"attempts": commit.Attempts,
	}).Info("artifact uploaded")
	return res
}

// liveRef returns the current locator of kind from the primary. The asset
// passed in may predate a commit that finished while waiting for the kind
// lock, or may have been served by a lagging replica.
func (o *UploadOrchestrator) liveRef(ctx context.Context, asset *domain.Asset, kind domain.FileKind, logger *log.Entry) string {
	live, err := o.assets.GetPrimary(ctx, asset.ID)
	if err != nil {
		logger.WithError(err).Warn("read live artifact from primary failed, using request snapshot")
		return asset.Ref(kind)
	}
	return live.Ref(kind)
}

// afterModelCommit opens a new review cycle for a freshly committed model.
func (o *UploadOrchestrator) afterModelCommit(ctx context.Context, assetID uuid.UUID, commit *CommitResult) {
	logger := log.WithField("asset_id", assetID)

	if _, err := o.revisions.SupersedeForNewUpload(ctx, assetID); err != nil {
		logger.WithError(err).Warn("supersede feedback failed")
	}

	if o.trigger != nil {
		o.trigger.Invalidate(assetID)
	}

	asset := commit.Asset
	if asset == nil {
		a, err := o.assets.Get(ctx, assetID)
		if err != nil {
			logger.WithError(err).Warn("reload asset after commit failed")
			return
		}
		asset = a
	}

	if _, err := o.gate.ResetVerdict(ctx, assetID, asset.Status); err != nil {
		logger.WithError(err).Warn("reset qa verdict failed")
	}

	if o.trigger != nil {
		o.trigger.Arm(assetID, asset.ArtifactToken, commit.Confirmed)
	}
}

func (o *UploadOrchestrator) validate(asset *domain.Asset, kind domain.FileKind, file *UploadFile) error {
	field := string(kind)
	maxBytes, exts := o.limits.forKind(kind)

	ext := domain.FileExt(file.Name)
	if !containsFold(exts, ext) {
		return &domain.ValidationError{Field: field, Reason: "unsupported file extension", Expected: strings.Join(exts, "|"), Actual: ext}
	}
	if file.Size <= 0 {
		return &domain.ValidationError{Field: field, Reason: "file is empty"}
	}
	if maxBytes > 0 && file.Size > maxBytes {
		return &domain.ValidationError{
			Field:    field,
			Reason:   "file is too large",
			Expected: fmt.Sprintf("<= %d bytes", maxBytes),
			Actual:   fmt.Sprintf("%d bytes", file.Size),
		}
	}
	base := domain.ArtifactBaseName(file.Name)
	if domain.NormalizeName(base) != domain.NormalizeName(asset.ArticleID) {
		return &domain.ValidationError{Field: field, Reason: "file name must match the article id", Expected: asset.ArticleID + ext, Actual: file.Name}
	}
	return nil
}

// sniffMagic warns when the leading bytes do not look like the declared
// format. The upload still goes through.
func sniffMagic(file *UploadFile, logger *log.Entry) io.Reader {
	magic, ok := magicBytes[domain.FileExt(file.Name)]
	if !ok {
		return file.Body
	}
	br := bufio.NewReader(file.Body)
	head, err := br.Peek(len(magic))
	if err != nil || !bytes.Equal(head, magic) {
		logger.WithField("expected_magic", string(magic)).Warn("artifact header does not match its extension")
	}
	return br
}

// RestoreVersion makes a backup the live artifact of its kind. The current
// live file is backed up first.
func (o *UploadOrchestrator) RestoreVersion(ctx context.Context, assetID uuid.UUID, backupLocator string, kind domain.FileKind) (*KindResult, error) {
	if backupLocator == "" {
		return nil, domain.ErrInvalidLocator
	}
	unlock := o.versions.locks.lock(assetID, kind)
	defer unlock()

	asset, err := o.assets.GetPrimary(ctx, assetID)
	if err != nil {
		return nil, err
	}

	res := &KindResult{Kind: kind}
	if ref := asset.Ref(kind); ref != "" && ref != backupLocator {
		backup, err := o.versions.backupLocked(ctx, assetID, kind, ref, o.now().UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("back up live artifact before restore: %w", err)
		}
		res.Backup = backup
	}

	locator, err := o.versions.restoreLocked(ctx, assetID, backupLocator, kind)
	if err != nil {
		return nil, err
	}
	commit, err := o.verifier.CommitAndVerify(ctx, assetID, domain.FieldForKind(kind), locator)
	if err != nil {
		return nil, err
	}
	res.Locator = commit.Confirmed
	res.Attempts = commit.Attempts

	if kind == domain.FileKindModel {
		o.afterModelCommit(ctx, assetID, commit)
	}
	log.WithFields(log.Fields{
		"asset_id":  assetID,
		"file_kind": kind,
		"from":      backupLocator,
		"locator":   locator,
	}).Info("artifact version restored")
	return res, nil
}

// BackupFile backs up the live artifact of kind on demand.
func (o *UploadOrchestrator) BackupFile(ctx context.Context, assetID uuid.UUID, kind domain.FileKind) (*BackupResult, error) {
	asset, err := o.assets.GetPrimary(ctx, assetID)
	if err != nil {
		return nil, err
	}
	ref := asset.Ref(kind)
	if ref == "" {
		return nil, domain.NewConflict(domain.CodeMissingArtifact, "asset has no %s artifact", kind)
	}
	return o.versions.Backup(ctx, assetID, kind, ref, o.now().UnixMilli())
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
