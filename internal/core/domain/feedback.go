package domain

import (
	"time"

	"github.com/google/uuid"
)

type FeedbackKind string

const (
	FeedbackAnnotation FeedbackKind = "annotation"
	FeedbackComment    FeedbackKind = "comment"
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type FeedbackItem struct {
	ID             uuid.UUID    `json:"id"`
	AssetID        uuid.UUID    `json:"asset_id"`
	Kind           FeedbackKind `json:"kind"`
	ParentID       *uuid.UUID   `json:"parent_id,omitempty"`
	RevisionNumber int          `json:"revision_number"`
	IsSuperseded   bool         `json:"is_superseded"`
	AuthorID       string       `json:"author_id"`
	Body           string       `json:"body"`
	Position       *Vec3        `json:"position,omitempty"`
	Normal         *Vec3        `json:"normal,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

func (f *FeedbackItem) IsReply() bool {
	return f.ParentID != nil
}

// IsLive reports whether the item belongs to the viewed revision. Superseded
// items only drop out when the viewed revision is the current one.
func (f *FeedbackItem) IsLive(viewedRevision, revisionCount int) bool {
	if f.RevisionNumber != viewedRevision {
		return false
	}
	if viewedRevision == revisionCount && f.IsSuperseded {
		return false
	}
	return true
}

// FeedbackThread is a top level item with its replies in creation order.
type FeedbackThread struct {
	Item    *FeedbackItem   `json:"item"`
	Replies []*FeedbackItem `json:"replies"`
}
