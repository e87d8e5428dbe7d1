package handlers

import (
	"asset-lifecycle-service/internal/core/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	assetSvc    *services.AssetService
	uploadSvc   *services.UploadOrchestrator
	versionSvc  *services.VersionStore
	gateSvc     *services.QAGate
	revisionSvc *services.RevisionTracker
	trigger     *services.AutoTrigger
}

func New(
	assetSvc *services.AssetService,
	uploadSvc *services.UploadOrchestrator,
	versionSvc *services.VersionStore,
	gateSvc *services.QAGate,
	revisionSvc *services.RevisionTracker,
	trigger *services.AutoTrigger,
) *Handler {
	return &Handler{
		assetSvc:    assetSvc,
		uploadSvc:   uploadSvc,
		versionSvc:  versionSvc,
		gateSvc:     gateSvc,
		revisionSvc: revisionSvc,
		trigger:     trigger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Assets
	r.GET("/assets/:id", h.GetAsset)
	r.PATCH("/assets/:id/status", h.UpdateStatus)
	r.GET("/assets/:id/status-history", h.ListStatusHistory)

	// Artifacts
	r.POST("/assets/:id/artifacts", h.UploadArtifacts)
	r.POST("/assets/:id/artifact-loaded", h.ConfirmArtifactLoaded)
	r.POST("/assets/:id/review", h.RunReview)

	// Versions
	r.GET("/assets/:id/versions", h.ListVersionHistory)
	r.POST("/assets/:id/versions/backup", h.BackupFile)
	r.POST("/assets/:id/versions/restore", h.RestoreVersion)
	r.DELETE("/assets/:id/versions", h.DeleteVersion)
	r.DELETE("/assets/:id/versions/all", h.DeleteAllVersions)

	// Feedback and revisions
	r.POST("/assets/:id/feedback", h.CreateFeedback)
	r.GET("/assets/:id/feedback", h.ListFeedback)
	r.POST("/assets/:id/revisions/advance", h.AdvanceRevision)
}
