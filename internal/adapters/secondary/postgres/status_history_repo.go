package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

type statusHistoryRepo struct {
	pool *pgxpool.Pool
}

func NewStatusHistoryRepository(pool *pgxpool.Pool) ports.StatusHistoryRepository {
	return &statusHistoryRepo{pool: pool}
}

func (r *statusHistoryRepo) Append(ctx context.Context, c *domain.StatusChange) error {
	query := `
		INSERT INTO asset_status_history
			(id, asset_id, previous_status, new_status, action_type, revision_number, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID, c.AssetID, string(c.PreviousStatus), string(c.NewStatus),
		c.ActionType, c.RevisionNumber, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

func (r *statusHistoryRepo) ListByAsset(ctx context.Context, assetID uuid.UUID) ([]*domain.StatusChange, error) {
	query := `
		SELECT id, asset_id, previous_status, new_status, action_type, revision_number, created_at
		FROM asset_status_history
		WHERE asset_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	var changes []*domain.StatusChange
	for rows.Next() {
		var (
			c        domain.StatusChange
			from, to string
		)
		if err := rows.Scan(&c.ID, &c.AssetID, &from, &to, &c.ActionType, &c.RevisionNumber, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		c.PreviousStatus = domain.AssetStatus(from)
		c.NewStatus = domain.AssetStatus(to)
		changes = append(changes, &c)
	}
	return changes, rows.Err()
}
