package handlers

import (
	"errors"
	"net/http"

	"asset-lifecycle-service/internal/adapters/primary/http/dto"
	"asset-lifecycle-service/internal/core/domain"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) ListVersionHistory(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	groups, err := h.versionSvc.History(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToVersionGroupsResponse(groups))
}

func (h *Handler) BackupFile(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	var req dto.BackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind, ok := parseFileKind(c, req.FileKind)
	if !ok {
		return
	}

	result, err := h.uploadSvc.BackupFile(c.Request.Context(), id, kind)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Status == domain.BackupSkipped {
		status = http.StatusOK
	}
	c.JSON(status, dto.ToBackupResponse(result))
}

func (h *Handler) RestoreVersion(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	var req dto.RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind, ok := parseFileKind(c, req.FileKind)
	if !ok {
		return
	}

	result, err := h.uploadSvc.RestoreVersion(c.Request.Context(), id, req.Locator, kind)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, toKindResultResponse(result))
}

func (h *Handler) DeleteVersion(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	locator := c.Query("locator")
	if locator == "" {
		mapDomainError(c, domain.ErrInvalidLocator)
		return
	}

	if err := h.versionSvc.Delete(c.Request.Context(), id, locator); err != nil {
		mapDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteAllVersions removes every backup, optionally of one file kind. Live
// versions are never touched. A partial failure reports 207 with the errors.
func (h *Handler) DeleteAllVersions(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	var kind *domain.FileKind
	if raw := c.Query("file_kind"); raw != "" {
		k, ok := parseFileKind(c, raw)
		if !ok {
			return
		}
		kind = &k
	}

	deleted, err := h.versionSvc.DeleteAll(c.Request.Context(), id, kind)
	if err != nil && deleted == 0 {
		mapDomainError(c, err)
		return
	}

	resp := dto.DeleteAllVersionsResponse{Deleted: deleted}
	if err != nil {
		resp.Errors = splitJoined(err)
		log.WithError(err).WithFields(log.Fields{
			"asset_id": id,
			"deleted":  deleted,
		}).Warn("some backups could not be deleted")
		c.JSON(http.StatusMultiStatus, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		out := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
