package dto

import (
	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/services"
)

type BackupResponse struct {
	Status  string `json:"status"`
	Locator string `json:"locator,omitempty"`
}

func ToBackupResponse(b *services.BackupResult) *BackupResponse {
	if b == nil {
		return nil
	}
	return &BackupResponse{Status: string(b.Status), Locator: b.Locator}
}

type KindResultResponse struct {
	FileKind string          `json:"file_kind"`
	Success  bool            `json:"success"`
	Locator  string          `json:"locator,omitempty"`
	Attempts int             `json:"attempts,omitempty"`
	Backup   *BackupResponse `json:"backup,omitempty"`
	Error    *ErrorResponse  `json:"error,omitempty"`
}

type UploadResponse struct {
	Results []KindResultResponse `json:"results"`
}

type BackupRequest struct {
	FileKind string `json:"file_kind" binding:"required"`
}

type RestoreRequest struct {
	Locator  string `json:"locator" binding:"required"`
	FileKind string `json:"file_kind" binding:"required"`
}

type VersionResponse struct {
	FileKind     string `json:"file_kind"`
	Locator      string `json:"locator"`
	SizeBytes    int64  `json:"size_bytes"`
	IsCurrent    bool   `json:"is_current"`
	IsBackup     bool   `json:"is_backup"`
	LastModified string `json:"last_modified"`
}

type VersionGroupResponse struct {
	GroupKey  string           `json:"group_key"`
	IsCurrent bool             `json:"is_current"`
	Timestamp int64            `json:"timestamp"`
	Model     *VersionResponse `json:"model,omitempty"`
	Source    *VersionResponse `json:"source,omitempty"`
}

type ListVersionGroupsResponse struct {
	Items []VersionGroupResponse `json:"items"`
	Total int                    `json:"total"`
}

func ToVersionGroupsResponse(groups []domain.VersionGroup) ListVersionGroupsResponse {
	items := make([]VersionGroupResponse, 0, len(groups))
	for _, g := range groups {
		items = append(items, VersionGroupResponse{
			GroupKey:  g.GroupKey,
			IsCurrent: g.IsCurrent,
			Timestamp: g.Timestamp,
			Model:     toVersionResponse(g.Model),
			Source:    toVersionResponse(g.Source),
		})
	}
	return ListVersionGroupsResponse{Items: items, Total: len(items)}
}

func toVersionResponse(v *domain.ArtifactVersion) *VersionResponse {
	if v == nil {
		return nil
	}
	return &VersionResponse{
		FileKind:     string(v.FileKind),
		Locator:      v.Locator,
		SizeBytes:    v.SizeBytes,
		IsCurrent:    v.IsCurrent,
		IsBackup:     v.IsBackup,
		LastModified: formatTime(v.LastModified),
	}
}

type DeleteAllVersionsResponse struct {
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors,omitempty"`
}
