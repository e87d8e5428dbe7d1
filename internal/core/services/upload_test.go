package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-lifecycle-service/internal/core/domain"
)

func uploadFile(name string, data []byte) *UploadFile {
	return &UploadFile{Name: name, Size: int64(len(data)), Body: bytes.NewReader(data)}
}

func TestUploadBoth_NoFiles(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, true)

	_, err := h.uploads.UploadBoth(context.Background(), id, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNoFilesSelected)
}

func TestUploadBoth_SharedBackupGroup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	before := h.assets.Snapshot(id)

	out, err := h.uploads.UploadBoth(ctx, id,
		uploadFile("abc123.glb", []byte("glTF-new-model")),
		uploadFile("ABC123.blend", []byte("BLENDER-new-source")))
	require.NoError(t, err)
	require.True(t, out.Model.OK(), "model: %v", out.Model.Err)
	require.True(t, out.Source.OK(), "source: %v", out.Source.Err)
	assert.False(t, out.AllFailed())

	require.NotNil(t, out.Model.Backup)
	require.NotNil(t, out.Source.Backup)
	assert.Equal(t, domain.BackupCreated, out.Model.Backup.Status)
	assert.Equal(t, domain.BackupCreated, out.Source.Backup.Status)

	after := h.assets.Snapshot(id)
	assert.Equal(t, out.Model.Locator, after.ModelArtifactRef)
	assert.Equal(t, out.Source.Locator, after.SourceArtifactRef)
	assert.NotEqual(t, before.ModelArtifactRef, after.ModelArtifactRef)
	assert.Equal(t, int64(2), after.ArtifactToken)

	groups, err := h.vs.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, before.ModelArtifactRef, groups[1].Model.SourceLocator)
	assert.Equal(t, before.SourceArtifactRef, groups[1].Source.SourceLocator)
}

func TestUploadBoth_BacksUpPrimaryPointerUnderReplicaLag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	original := h.assets.Snapshot(id).ModelArtifactRef

	// a commit the replica has not caught up with yet
	h.assets.Lag = 2
	committed := h.store.SeedObject("assets/"+id.String()+"/model/2/abc123.glb", []byte("glTF-committed-model"))
	_, err := h.assets.Update(ctx, id, domain.AssetPatch{ModelArtifactRef: &committed})
	require.NoError(t, err)

	out, err := h.uploads.UploadBoth(ctx, id, uploadFile("abc123.glb", []byte("glTF-new-model")), nil)
	require.NoError(t, err)
	require.True(t, out.Model.OK(), "model: %v", out.Model.Err)
	require.NotNil(t, out.Model.Backup)
	assert.Equal(t, domain.BackupCreated, out.Model.Backup.Status)

	version, err := h.versions.GetByLocator(ctx, id, out.Model.Backup.Locator)
	require.NoError(t, err)
	assert.Equal(t, committed, version.SourceLocator)
	assert.NotEqual(t, original, version.SourceLocator)
}

func TestUploadBoth_FilesFailIndependently(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	before := h.assets.Snapshot(id)

	out, err := h.uploads.UploadBoth(ctx, id,
		uploadFile("xyz999.glb", []byte("glTF-wrong")),
		uploadFile("abc123.blend", []byte("BLENDER-ok")))
	require.NoError(t, err)

	var verr *domain.ValidationError
	require.ErrorAs(t, out.Model.Err, &verr)
	assert.Equal(t, "abc123.glb", verr.Expected)
	assert.Equal(t, "xyz999.glb", verr.Actual)
	assert.True(t, out.Source.OK())

	after := h.assets.Snapshot(id)
	assert.Equal(t, before.ModelArtifactRef, after.ModelArtifactRef)
	assert.NotEqual(t, before.SourceArtifactRef, after.SourceArtifactRef)
}

func TestUploadBoth_Validation(t *testing.T) {
	h := newHarness(t)
	h.uploads.limits.ModelMaxBytes = 8
	id := h.seedAsset(t, domain.StatusInProduction, false)

	tests := []struct {
		name   string
		file   *UploadFile
		reason string
	}{
		{"wrong extension", uploadFile("abc123.obj", []byte("x")), "unsupported file extension"},
		{"empty", uploadFile("abc123.glb", nil), "file is empty"},
		{"too large", uploadFile("abc123.glb", []byte("glTF-0123456789")), "file is too large"},
		{"name mismatch", uploadFile("abc124.glb", []byte("glTF")), "file name must match the article id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.uploads.UploadBoth(context.Background(), id, tt.file, nil)
			require.NoError(t, err)
			var verr *domain.ValidationError
			require.ErrorAs(t, out.Model.Err, &verr)
			assert.Equal(t, tt.reason, verr.Reason)
			assert.True(t, out.AllFailed())
			assert.Nil(t, out.Source)
		})
	}
}

func TestUploadBoth_ModelSupersedesFeedbackAndResetsVerdict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	approved := domain.VerdictApproved
	_, err := h.assets.Update(ctx, id, domain.AssetPatch{QAVerdict: &approved})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		annotate(t, h, id, "old note")
	}

	out, err := h.uploads.UploadBoth(ctx, id, uploadFile("abc123.glb", []byte("glTF-v2")), nil)
	require.NoError(t, err)
	require.True(t, out.Model.OK())

	live, err := h.tracker.LiveSet(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, live)
	assert.Equal(t, domain.VerdictUnknown, h.assets.Snapshot(id).QAVerdict)

	token, pending := h.trigger.Pending(id)
	assert.True(t, pending)
	assert.Equal(t, h.assets.Snapshot(id).ArtifactToken, token)
}

func TestUploadBoth_SourceOnlyLeavesReviewState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	approved := domain.VerdictApproved
	_, err := h.assets.Update(ctx, id, domain.AssetPatch{QAVerdict: &approved})
	require.NoError(t, err)
	note := annotate(t, h, id, "keep me")

	out, err := h.uploads.UploadBoth(ctx, id, nil, uploadFile("abc123.blend", []byte("BLENDER-v2")))
	require.NoError(t, err)
	require.True(t, out.Source.OK())

	live, err := h.tracker.LiveSet(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, note.ID, live[0].ID)
	assert.Equal(t, domain.VerdictApproved, h.assets.Snapshot(id).QAVerdict)
	_, pending := h.trigger.Pending(id)
	assert.False(t, pending)
}

func TestUploadBoth_VerdictPreservedAfterDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusDeliveredByArtist, true)
	approved := domain.VerdictApproved
	_, err := h.assets.Update(ctx, id, domain.AssetPatch{QAVerdict: &approved})
	require.NoError(t, err)

	out, err := h.uploads.UploadBoth(ctx, id, uploadFile("abc123.glb", []byte("glTF-v2")), nil)
	require.NoError(t, err)
	require.True(t, out.Model.OK())
	assert.Equal(t, domain.VerdictApproved, h.assets.Snapshot(id).QAVerdict)
}

func TestUploadBoth_BackupFailureDoesNotBlockUpload(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, true)
	h.store.Errs["copy"] = errors.New("bucket unavailable")

	out, err := h.uploads.UploadBoth(context.Background(), id, uploadFile("abc123.glb", []byte("glTF-v2")), nil)
	require.NoError(t, err)
	require.True(t, out.Model.OK())
	assert.Nil(t, out.Model.Backup)
	assert.Equal(t, 0, h.versions.Count())
}

func TestUploadBoth_StoreFailureIsReported(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, true)
	before := h.assets.Snapshot(id)
	h.store.Errs["put"] = errors.New("quota exceeded")

	out, err := h.uploads.UploadBoth(context.Background(), id, uploadFile("abc123.glb", []byte("glTF-v2")), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, out.Model.Err, domain.ErrStorage)
	assert.True(t, out.AllFailed())
	assert.Equal(t, before.ModelArtifactRef, h.assets.Snapshot(id).ModelArtifactRef)
}

func TestUploadBoth_SuspiciousHeaderStillAccepted(t *testing.T) {
	h := newHarness(t)
	id := h.seedAsset(t, domain.StatusInProduction, false)

	out, err := h.uploads.UploadBoth(context.Background(), id, uploadFile("abc123.glb", []byte("not a gltf")), nil)
	require.NoError(t, err)
	require.True(t, out.Model.OK())
	data, ok := h.store.Bytes(out.Model.Locator)
	require.True(t, ok)
	assert.Equal(t, []byte("not a gltf"), data)
}

func TestRestoreVersion_BacksUpLiveFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)
	original := h.assets.Snapshot(id).ModelArtifactRef

	_, err := h.uploads.UploadBoth(ctx, id, uploadFile("abc123.glb", []byte("glTF-v2")), nil)
	require.NoError(t, err)
	uploaded := h.assets.Snapshot(id).ModelArtifactRef

	backup, err := h.versions.FindBackup(ctx, id, domain.FileKindModel, "", original)
	require.NoError(t, err)

	res, err := h.uploads.RestoreVersion(ctx, id, backup.Locator, domain.FileKindModel)
	require.NoError(t, err)
	require.NotNil(t, res.Backup)
	assert.Equal(t, domain.BackupCreated, res.Backup.Status)

	live := h.assets.Snapshot(id).ModelArtifactRef
	assert.Equal(t, res.Locator, live)
	data, _ := h.store.Bytes(live)
	assert.Equal(t, []byte("glTF-original-model"), data)

	saved, err := h.versions.FindBackup(ctx, id, domain.FileKindModel, "", uploaded)
	require.NoError(t, err)
	data, _ = h.store.Bytes(saved.Locator)
	assert.Equal(t, []byte("glTF-v2"), data)
}

func TestBackupFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.seedAsset(t, domain.StatusInProduction, true)

	res, err := h.uploads.BackupFile(ctx, id, domain.FileKindSource)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupCreated, res.Status)

	empty := h.seedAsset(t, domain.StatusNotStarted, false)
	_, err = h.uploads.BackupFile(ctx, empty, domain.FileKindModel)
	assert.ErrorIs(t, err, domain.ErrMissingArtifact)
}
