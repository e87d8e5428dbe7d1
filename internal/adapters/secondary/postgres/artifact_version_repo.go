package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

const versionColumns = `id, asset_id, file_kind, locator, source_locator, size_bytes, group_key, created_at`

type artifactVersionRepo struct {
	pool *pgxpool.Pool
}

func NewArtifactVersionRepository(pool *pgxpool.Pool) ports.ArtifactVersionRepository {
	return &artifactVersionRepo{pool: pool}
}

func (r *artifactVersionRepo) Create(ctx context.Context, v *domain.ArtifactVersion) error {
	query := `
		INSERT INTO artifact_version
			(id, asset_id, file_kind, locator, source_locator, size_bytes, group_key, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	_, err := r.pool.Exec(ctx, query,
		v.ID, v.AssetID, string(v.FileKind), v.Locator, v.SourceLocator,
		v.SizeBytes, v.GroupKey, v.LastModified,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateBackup
		}
		return fmt.Errorf("create artifact version: %w", err)
	}
	return nil
}

func (r *artifactVersionRepo) FindBackup(ctx context.Context, assetID uuid.UUID, kind domain.FileKind, groupKey, sourceLocator string) (*domain.ArtifactVersion, error) {
	query := `SELECT ` + versionColumns + `
		FROM artifact_version
		WHERE asset_id = $1 AND file_kind = $2 AND (group_key = $3 OR source_locator = $4)
		ORDER BY created_at DESC
		LIMIT 1`
	v, err := scanVersion(r.pool.QueryRow(ctx, query, assetID, string(kind), groupKey, sourceLocator))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, fmt.Errorf("find backup: %w", err)
	}
	return v, nil
}

func (r *artifactVersionRepo) GetByLocator(ctx context.Context, assetID uuid.UUID, locator string) (*domain.ArtifactVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM artifact_version WHERE asset_id = $1 AND locator = $2`
	v, err := scanVersion(r.pool.QueryRow(ctx, query, assetID, locator))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, fmt.Errorf("get artifact version: %w", err)
	}
	return v, nil
}

func (r *artifactVersionRepo) ListByAsset(ctx context.Context, assetID uuid.UUID) ([]*domain.ArtifactVersion, error) {
	query := `SELECT ` + versionColumns + `
		FROM artifact_version
		WHERE asset_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("query artifact versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.ArtifactVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *artifactVersionRepo) Delete(ctx context.Context, assetID uuid.UUID, locator string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM artifact_version WHERE asset_id = $1 AND locator = $2`, assetID, locator)
	if err != nil {
		return fmt.Errorf("delete artifact version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionNotFound
	}
	return nil
}

func scanVersion(row pgx.Row) (*domain.ArtifactVersion, error) {
	var (
		v    domain.ArtifactVersion
		kind string
	)
	err := row.Scan(&v.ID, &v.AssetID, &kind, &v.Locator, &v.SourceLocator, &v.SizeBytes, &v.GroupKey, &v.LastModified)
	if err != nil {
		return nil, err
	}
	v.FileKind = domain.FileKind(kind)
	v.IsBackup = true
	return &v, nil
}
