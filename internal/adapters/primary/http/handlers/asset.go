package handlers

import (
	"net/http"

	"asset-lifecycle-service/internal/adapters/primary/http/dto"
	"asset-lifecycle-service/internal/core/domain"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) GetAsset(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	asset, err := h.assetSvc.Get(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToAssetResponse(asset))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	asset, err := h.gateSvc.UpdateStatus(c.Request.Context(), id, domain.AssetStatus(req.Status), req.QAApproved)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"asset_id": id,
			"target":   req.Status,
		}).Info("status update refused")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToAssetResponse(asset))
}

func (h *Handler) ListStatusHistory(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	changes, err := h.assetSvc.StatusHistory(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToStatusHistoryResponse(changes))
}
