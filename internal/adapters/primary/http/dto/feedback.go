package dto

import (
	"github.com/google/uuid"

	"asset-lifecycle-service/internal/core/domain"
)

type CreateFeedbackRequest struct {
	Kind     string       `json:"kind"`
	ParentID *uuid.UUID   `json:"parent_id"`
	AuthorID string       `json:"author_id" binding:"required"`
	Body     string       `json:"body"`
	Position *domain.Vec3 `json:"position"`
	Normal   *domain.Vec3 `json:"normal"`
}

type FeedbackResponse struct {
	ID             uuid.UUID    `json:"id"`
	Kind           string       `json:"kind"`
	ParentID       *uuid.UUID   `json:"parent_id,omitempty"`
	RevisionNumber int          `json:"revision_number"`
	IsSuperseded   bool         `json:"is_superseded"`
	AuthorID       string       `json:"author_id"`
	Body           string       `json:"body"`
	Position       *domain.Vec3 `json:"position,omitempty"`
	Normal         *domain.Vec3 `json:"normal,omitempty"`
	CreatedAt      string       `json:"created_at"`
}

func ToFeedbackResponse(f *domain.FeedbackItem) FeedbackResponse {
	return FeedbackResponse{
		ID:             f.ID,
		Kind:           string(f.Kind),
		ParentID:       f.ParentID,
		RevisionNumber: f.RevisionNumber,
		IsSuperseded:   f.IsSuperseded,
		AuthorID:       f.AuthorID,
		Body:           f.Body,
		Position:       f.Position,
		Normal:         f.Normal,
		CreatedAt:      formatTime(f.CreatedAt),
	}
}

type FeedbackThreadResponse struct {
	FeedbackResponse
	Replies []FeedbackResponse `json:"replies"`
}

type ListFeedbackResponse struct {
	Revision int                      `json:"revision"`
	Items    []FeedbackThreadResponse `json:"items"`
	Total    int                      `json:"total"`
}

func ToListFeedbackResponse(revision int, threads []domain.FeedbackThread) ListFeedbackResponse {
	items := make([]FeedbackThreadResponse, 0, len(threads))
	for _, th := range threads {
		replies := make([]FeedbackResponse, 0, len(th.Replies))
		for _, r := range th.Replies {
			replies = append(replies, ToFeedbackResponse(r))
		}
		items = append(items, FeedbackThreadResponse{
			FeedbackResponse: ToFeedbackResponse(th.Item),
			Replies:          replies,
		})
	}
	return ListFeedbackResponse{Revision: revision, Items: items, Total: len(items)}
}
