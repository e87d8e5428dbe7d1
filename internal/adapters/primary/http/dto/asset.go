package dto

import (
	"time"

	"github.com/google/uuid"

	"asset-lifecycle-service/internal/core/domain"
)

type AssetResponse struct {
	ID                uuid.UUID `json:"id"`
	ArticleID         string    `json:"article_id"`
	Status            string    `json:"status"`
	RevisionCount     int       `json:"revision_count"`
	ModelArtifactRef  string    `json:"model_artifact_ref"`
	SourceArtifactRef string    `json:"source_artifact_ref"`
	QAVerdict         string    `json:"qa_verdict"`
	ArtifactToken     int64     `json:"artifact_token"`
	CreatedAt         string    `json:"created_at"`
	UpdatedAt         string    `json:"updated_at"`
}

func ToAssetResponse(a *domain.Asset) AssetResponse {
	return AssetResponse{
		ID:                a.ID,
		ArticleID:         a.ArticleID,
		Status:            string(a.Status),
		RevisionCount:     a.RevisionCount,
		ModelArtifactRef:  a.ModelArtifactRef,
		SourceArtifactRef: a.SourceArtifactRef,
		QAVerdict:         string(a.QAVerdict),
		ArtifactToken:     a.ArtifactToken,
		CreatedAt:         formatTime(a.CreatedAt),
		UpdatedAt:         formatTime(a.UpdatedAt),
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	// QAApproved overrides the stored verdict before the delivery guard runs.
	QAApproved *bool `json:"qa_approved"`
}

type StatusChangeResponse struct {
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	ActionType     string `json:"action_type"`
	RevisionNumber int    `json:"revision_number"`
	CreatedAt      string `json:"created_at"`
}

type ListStatusHistoryResponse struct {
	Items []StatusChangeResponse `json:"items"`
	Total int                    `json:"total"`
}

func ToStatusHistoryResponse(changes []*domain.StatusChange) ListStatusHistoryResponse {
	items := make([]StatusChangeResponse, 0, len(changes))
	for _, ch := range changes {
		items = append(items, StatusChangeResponse{
			PreviousStatus: string(ch.PreviousStatus),
			NewStatus:      string(ch.NewStatus),
			ActionType:     ch.ActionType,
			RevisionNumber: ch.RevisionNumber,
			CreatedAt:      formatTime(ch.CreatedAt),
		})
	}
	return ListStatusHistoryResponse{Items: items, Total: len(items)}
}

type RunReviewRequest struct {
	ReferenceImages []string `json:"reference_images"`
}

type RunReviewResponse struct {
	Verdict string `json:"verdict"`
}

type ArtifactLoadedRequest struct {
	Token *int64 `json:"token" binding:"required"`
}

type ArtifactLoadedResponse struct {
	Accepted bool `json:"accepted"`
}

type AdvanceRevisionResponse struct {
	RevisionCount int `json:"revision_count"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
