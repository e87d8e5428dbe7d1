package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFeedbackItem_IsLive(t *testing.T) {
	item := &FeedbackItem{RevisionNumber: 2}
	assert.True(t, item.IsLive(2, 2))
	assert.False(t, item.IsLive(1, 2))

	item.IsSuperseded = true
	assert.False(t, item.IsLive(2, 2))
	// past revisions keep their superseded items as history
	assert.True(t, item.IsLive(2, 3))
}

func TestFeedbackItem_IsReply(t *testing.T) {
	parent := uuid.New()
	assert.True(t, (&FeedbackItem{ParentID: &parent}).IsReply())
	assert.False(t, (&FeedbackItem{}).IsReply())
}
