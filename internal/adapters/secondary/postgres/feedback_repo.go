package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

const feedbackColumns = `id, asset_id, kind, parent_id, revision_number, is_superseded,
	author_id, body, position, normal, created_at`

type feedbackRepo struct {
	pool *pgxpool.Pool
}

func NewFeedbackRepository(pool *pgxpool.Pool) ports.FeedbackRepository {
	return &feedbackRepo{pool: pool}
}

func (r *feedbackRepo) Create(ctx context.Context, item *domain.FeedbackItem) error {
	position, err := marshalVec(item.Position)
	if err != nil {
		return err
	}
	normal, err := marshalVec(item.Normal)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO asset_feedback
			(id, asset_id, kind, parent_id, revision_number, is_superseded,
			 author_id, body, position, normal, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	_, err = r.pool.Exec(ctx, query,
		item.ID, item.AssetID, string(item.Kind), item.ParentID, item.RevisionNumber,
		item.IsSuperseded, item.AuthorID, item.Body, position, normal, item.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrInvalidParent
		}
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

func (r *feedbackRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FeedbackItem, error) {
	query := `SELECT ` + feedbackColumns + ` FROM asset_feedback WHERE id = $1`
	item, err := scanFeedback(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFeedbackNotFound
		}
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return item, nil
}

func (r *feedbackRepo) List(ctx context.Context, filter ports.FeedbackFilter) ([]*domain.FeedbackItem, error) {
	query := `SELECT ` + feedbackColumns + ` FROM asset_feedback WHERE asset_id = $1`
	args := []any{filter.AssetID}
	if filter.Revision != nil {
		args = append(args, *filter.Revision)
		query += ` AND revision_number = $2`
	}
	query += ` ORDER BY created_at ASC`
	return r.query(ctx, query, args...)
}

func (r *feedbackRepo) ListReplies(ctx context.Context, parentIDs []uuid.UUID) ([]*domain.FeedbackItem, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(parentIDs))
	for _, id := range parentIDs {
		ids = append(ids, id.String())
	}
	query := `SELECT ` + feedbackColumns + `
		FROM asset_feedback
		WHERE parent_id = ANY($1::uuid[])
		ORDER BY created_at ASC`
	return r.query(ctx, query, ids)
}

func (r *feedbackRepo) MarkSuperseded(ctx context.Context, assetID uuid.UUID) (int64, error) {
	query := `UPDATE asset_feedback SET is_superseded = TRUE WHERE asset_id = $1 AND NOT is_superseded`
	tag, err := r.pool.Exec(ctx, query, assetID)
	if err != nil {
		return 0, fmt.Errorf("mark feedback superseded: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *feedbackRepo) query(ctx context.Context, query string, args ...any) ([]*domain.FeedbackItem, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var items []*domain.FeedbackItem
	for rows.Next() {
		item, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanFeedback(row pgx.Row) (*domain.FeedbackItem, error) {
	var (
		item             domain.FeedbackItem
		kind             string
		position, normal []byte
	)
	err := row.Scan(
		&item.ID, &item.AssetID, &kind, &item.ParentID, &item.RevisionNumber, &item.IsSuperseded,
		&item.AuthorID, &item.Body, &position, &normal, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Kind = domain.FeedbackKind(kind)
	if item.Position, err = unmarshalVec(position); err != nil {
		return nil, err
	}
	if item.Normal, err = unmarshalVec(normal); err != nil {
		return nil, err
	}
	return &item, nil
}

func marshalVec(v *domain.Vec3) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal vector: %w", err)
	}
	return b, nil
}

func unmarshalVec(b []byte) (*domain.Vec3, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v domain.Vec3
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("unmarshal vector: %w", err)
	}
	return &v, nil
}
