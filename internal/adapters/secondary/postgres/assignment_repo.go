package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"asset-lifecycle-service/internal/core/ports/output"
)

type assignmentRepo struct {
	pool *pgxpool.Pool
	role string
}

// NewAssignmentRepository stamps completion on assignments held in role,
// the modeler role in practice.
func NewAssignmentRepository(pool *pgxpool.Pool, role string) ports.AssignmentRepository {
	return &assignmentRepo{pool: pool, role: role}
}

func (r *assignmentRepo) MarkCompleted(ctx context.Context, assetID uuid.UUID, at time.Time) error {
	query := `
		UPDATE asset_assignment
		SET completed_at = $3
		WHERE asset_id = $1 AND role = $2 AND completed_at IS NULL
	`
	if _, err := r.pool.Exec(ctx, query, assetID, r.role, at); err != nil {
		return fmt.Errorf("mark assignment completed: %w", err)
	}
	return nil
}
