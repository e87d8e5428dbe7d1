package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

const assetColumns = `id, article_id, status, revision_count,
	COALESCE(model_artifact_ref, ''), COALESCE(source_artifact_ref, ''),
	qa_approved, artifact_token, row_version, created_at, updated_at`

type assetRepo struct {
	pool *pgxpool.Pool
	read *pgxpool.Pool
}

// NewAssetRepository reads through read when it is set, typically a pool on
// a streaming replica. Writes always go to pool.
func NewAssetRepository(pool, read *pgxpool.Pool) ports.AssetRepository {
	if read == nil {
		read = pool
	}
	return &assetRepo{pool: pool, read: read}
}

func (r *assetRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	return r.get(ctx, r.read, id)
}

func (r *assetRepo) GetPrimary(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	return r.get(ctx, r.pool, id)
}

func (r *assetRepo) get(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM asset WHERE id = $1`
	asset, err := scanAsset(pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAssetNotFound
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

func (r *assetRepo) Update(ctx context.Context, id uuid.UUID, patch domain.AssetPatch) (*domain.Asset, error) {
	sets := []string{"row_version = row_version + 1", "updated_at = NOW()"}
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.RevisionCount != nil {
		set("revision_count", *patch.RevisionCount)
	}
	if patch.ModelArtifactRef != nil {
		set("model_artifact_ref", nullIfEmpty(*patch.ModelArtifactRef))
	}
	if patch.SourceArtifactRef != nil {
		set("source_artifact_ref", nullIfEmpty(*patch.SourceArtifactRef))
	}
	if patch.QAVerdict != nil {
		set("qa_approved", verdictColumn(*patch.QAVerdict))
	}
	if patch.BumpArtifactToken {
		sets = append(sets, "artifact_token = artifact_token + 1")
	}

	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if patch.ExpectedRowVersion != nil {
		args = append(args, *patch.ExpectedRowVersion)
		where += fmt.Sprintf(" AND row_version = $%d", len(args))
	}

	query := fmt.Sprintf(`UPDATE asset SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, assetColumns)
	asset, err := scanAsset(r.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return asset, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update asset: %w", err)
	}
	if patch.ExpectedRowVersion == nil {
		return nil, domain.ErrAssetNotFound
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM asset WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check asset: %w", err)
	}
	if !exists {
		return nil, domain.ErrAssetNotFound
	}
	return nil, domain.ErrStaleAsset
}

func scanAsset(row pgx.Row) (*domain.Asset, error) {
	var (
		a        domain.Asset
		status   string
		approved *bool
	)
	err := row.Scan(
		&a.ID, &a.ArticleID, &status, &a.RevisionCount,
		&a.ModelArtifactRef, &a.SourceArtifactRef,
		&approved, &a.ArtifactToken, &a.RowVersion, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = domain.AssetStatus(status)
	a.QAVerdict = domain.VerdictUnknown
	if approved != nil {
		a.QAVerdict = domain.VerdictFromBool(*approved)
	}
	return &a, nil
}

func verdictColumn(v domain.QAVerdict) *bool {
	switch v {
	case domain.VerdictApproved:
		b := true
		return &b
	case domain.VerdictRejected:
		b := false
		return &b
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
