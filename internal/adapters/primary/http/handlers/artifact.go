package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"asset-lifecycle-service/internal/adapters/primary/http/dto"
	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// UploadArtifacts accepts a multipart form with optional "model" and "source"
// parts. Each part succeeds or fails on its own; the request fails with 422
// only when every provided part failed.
func (h *Handler) UploadArtifacts(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	model, closeModel, err := formFile(c, "model")
	if err != nil {
		badRequest(c, err)
		return
	}
	defer closeModel()
	source, closeSource, err := formFile(c, "source")
	if err != nil {
		badRequest(c, err)
		return
	}
	defer closeSource()

	outcome, err := h.uploadSvc.UploadBoth(c.Request.Context(), id, model, source)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	resp := dto.UploadResponse{Results: make([]dto.KindResultResponse, 0, 2)}
	for _, r := range outcome.Results() {
		resp.Results = append(resp.Results, toKindResultResponse(r))
	}

	status := http.StatusOK
	if outcome.AllFailed() {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, resp)
}

// formFile returns nil when the part is absent.
func formFile(c *gin.Context, field string) (*services.UploadFile, func(), error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &services.UploadFile{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: contentType(fh),
		Body:        f,
	}, func() { _ = f.Close() }, nil
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func toKindResultResponse(r *services.KindResult) dto.KindResultResponse {
	resp := dto.KindResultResponse{
		FileKind: string(r.Kind),
		Success:  r.OK(),
		Locator:  r.Locator,
		Attempts: r.Attempts,
		Backup:   dto.ToBackupResponse(r.Backup),
	}
	if r.Err != nil {
		_, body := describeError(r.Err)
		resp.Error = &body
	}
	return resp
}

func (h *Handler) ConfirmArtifactLoaded(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	var req dto.ArtifactLoadedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	accepted := h.trigger.ConfirmLoaded(id, *req.Token)
	if !accepted {
		log.WithFields(log.Fields{
			"asset_id": id,
			"token":    *req.Token,
		}).Debug("load confirmation ignored")
	}
	c.JSON(http.StatusOK, dto.ArtifactLoadedResponse{Accepted: accepted})
}

func (h *Handler) RunReview(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}

	var req dto.RunReviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	verdict, err := h.gateSvc.RunReview(c.Request.Context(), id, req.ReferenceImages)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RunReviewResponse{Verdict: string(verdict)})
}

func parseFileKind(c *gin.Context, raw string) (domain.FileKind, bool) {
	kind, err := domain.ParseFileKind(raw)
	if err != nil {
		mapDomainError(c, err)
		return "", false
	}
	return kind, true
}
