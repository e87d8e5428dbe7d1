package ports

import "asset-lifecycle-service/internal/core/domain"

type Recorder interface {
	UploadFinished(kind domain.FileKind, ok bool)
	BackupFinished(kind domain.FileKind, status string)
	VerificationFinished(field domain.AssetField, attempts int, ok bool)
	GateRejected(code string)
	StatusChanged(from, to domain.AssetStatus)
	AutoTriggerFired()
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func (NopRecorder) UploadFinished(domain.FileKind, bool)                 {}
func (NopRecorder) BackupFinished(domain.FileKind, string)               {}
func (NopRecorder) VerificationFinished(domain.AssetField, int, bool)    {}
func (NopRecorder) GateRejected(string)                                  {}
func (NopRecorder) StatusChanged(domain.AssetStatus, domain.AssetStatus) {}
func (NopRecorder) AutoTriggerFired()                                    {}
