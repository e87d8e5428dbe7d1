package handlers

import (
	"net/http"
	"strconv"

	"asset-lifecycle-service/internal/adapters/primary/http/dto"
	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateFeedback(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	var req dto.CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.revisionSvc.CreateFeedback(c.Request.Context(), id, services.CreateFeedbackInput{
		Kind:     domain.FeedbackKind(req.Kind),
		ParentID: req.ParentID,
		AuthorID: req.AuthorID,
		Body:     req.Body,
		Position: req.Position,
		Normal:   req.Normal,
	})
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToFeedbackResponse(item))
}

// ListFeedback returns the feedback threads live at ?revision=, defaulting to
// the asset's current revision.
func (h *Handler) ListFeedback(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	var revision int
	if raw := c.Query("revision"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			mapDomainError(c, &domain.ValidationError{Field: "revision", Reason: "revision must be an integer", Actual: raw})
			return
		}
		revision = n
	} else {
		asset, err := h.assetSvc.Get(c.Request.Context(), id)
		if err != nil {
			mapDomainError(c, err)
			return
		}
		revision = asset.RevisionCount
	}

	threads, err := h.revisionSvc.Threads(c.Request.Context(), id, revision)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListFeedbackResponse(revision, threads))
}

func (h *Handler) AdvanceRevision(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	count, err := h.revisionSvc.AdvanceRevision(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AdvanceRevisionResponse{RevisionCount: count})
}
