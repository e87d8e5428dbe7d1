package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AssetStatus string

const (
	StatusNotStarted         AssetStatus = "not_started"
	StatusInProgress         AssetStatus = "in_progress"
	StatusInProduction       AssetStatus = "in_production"
	StatusRevisionsRequested AssetStatus = "revisions"
	StatusDeliveredByArtist  AssetStatus = "delivered_by_artist"
	StatusApproved           AssetStatus = "approved"
	StatusApprovedByClient   AssetStatus = "approved_by_client"
)

// transitions is the closed set of legal status moves. Anything not listed
// here is rejected with an InvalidTransition conflict.
var transitions = map[AssetStatus][]AssetStatus{
	StatusNotStarted:         {StatusInProgress},
	StatusInProgress:         {StatusInProduction, StatusDeliveredByArtist},
	StatusInProduction:       {StatusRevisionsRequested, StatusDeliveredByArtist},
	StatusRevisionsRequested: {StatusInProduction, StatusDeliveredByArtist},
	StatusDeliveredByArtist:  {StatusApproved, StatusRevisionsRequested, StatusInProduction},
	StatusApproved:           {StatusApprovedByClient, StatusRevisionsRequested, StatusInProduction, StatusDeliveredByArtist},
	StatusApprovedByClient:   {StatusApproved, StatusRevisionsRequested, StatusInProduction, StatusDeliveredByArtist},
}

func ParseAssetStatus(s string) (AssetStatus, error) {
	status := AssetStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := transitions[status]; !ok {
		return "", &ValidationError{Field: "status", Reason: "unknown status", Actual: s}
	}
	return status, nil
}

func (s AssetStatus) CanTransitionTo(target AssetStatus) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsApproved reports whether the status is one of the approval states that
// an unapproval event must be able to reverse.
func (s AssetStatus) IsApproved() bool {
	return s == StatusApproved || s == StatusApprovedByClient
}

// PreservesVerdict reports whether a QA verdict must survive a new model
// upload. Once any delivered or approved state is reached the verdict is kept.
func (s AssetStatus) PreservesVerdict() bool {
	return s == StatusDeliveredByArtist || s.IsApproved()
}

type QAVerdict string

const (
	VerdictUnknown  QAVerdict = "unknown"
	VerdictApproved QAVerdict = "approved"
	VerdictRejected QAVerdict = "rejected"
)

func VerdictFromBool(approved bool) QAVerdict {
	if approved {
		return VerdictApproved
	}
	return VerdictRejected
}

type Asset struct {
	ID                uuid.UUID   `json:"id"`
	ArticleID         string      `json:"article_id"`
	Status            AssetStatus `json:"status"`
	RevisionCount     int         `json:"revision_count"`
	ModelArtifactRef  string      `json:"model_artifact_ref"`
	SourceArtifactRef string      `json:"source_artifact_ref"`
	QAVerdict         QAVerdict   `json:"qa_verdict"`
	// ArtifactToken increases on every committed artifact write. Consumers
	// compare tokens to detect a stale artifact pointer.
	ArtifactToken int64     `json:"artifact_token"`
	RowVersion    int64     `json:"row_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (a *Asset) Ref(kind FileKind) string {
	if kind == FileKindSource {
		return a.SourceArtifactRef
	}
	return a.ModelArtifactRef
}

// AssetField names a canonical artifact pointer column on the asset record.
type AssetField string

const (
	FieldModelArtifactRef  AssetField = "model_artifact_ref"
	FieldSourceArtifactRef AssetField = "source_artifact_ref"
)

func FieldForKind(kind FileKind) AssetField {
	if kind == FileKindSource {
		return FieldSourceArtifactRef
	}
	return FieldModelArtifactRef
}

func (a *Asset) FieldValue(field AssetField) string {
	if field == FieldSourceArtifactRef {
		return a.SourceArtifactRef
	}
	return a.ModelArtifactRef
}

// AssetPatch is a partial update. Nil fields are left untouched.
type AssetPatch struct {
	Status            *AssetStatus
	RevisionCount     *int
	ModelArtifactRef  *string
	SourceArtifactRef *string
	QAVerdict         *QAVerdict
	BumpArtifactToken bool
	// ExpectedRowVersion makes the update conditional on the stored row
	// version; a mismatch fails with ErrStaleAsset.
	ExpectedRowVersion *int64
}

func (p AssetPatch) WithField(field AssetField, value string) AssetPatch {
	v := value
	if field == FieldSourceArtifactRef {
		p.SourceArtifactRef = &v
	} else {
		p.ModelArtifactRef = &v
	}
	return p
}

func (p AssetPatch) IsEmpty() bool {
	return p.Status == nil && p.RevisionCount == nil && p.ModelArtifactRef == nil &&
		p.SourceArtifactRef == nil && p.QAVerdict == nil && !p.BumpArtifactToken
}

// StatusChange is one row of the asset status history.
type StatusChange struct {
	ID             uuid.UUID   `json:"id"`
	AssetID        uuid.UUID   `json:"asset_id"`
	PreviousStatus AssetStatus `json:"previous_status"`
	NewStatus      AssetStatus `json:"new_status"`
	ActionType     string      `json:"action_type"`
	RevisionNumber int         `json:"revision_number"`
	CreatedAt      time.Time   `json:"created_at"`
}
