package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"asset-lifecycle-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"asset not found", fmt.Errorf("get asset: %w", domain.ErrAssetNotFound), http.StatusNotFound, ""},
		{"object not found", &domain.StorageError{Op: "restore", Err: domain.ErrObjectNotFound}, http.StatusNotFound, ""},
		{"validation", domain.ErrNoFilesSelected, http.StatusBadRequest, ""},
		{"conflict", domain.NewConflict(domain.CodeNamingMismatch, "model name differs"), http.StatusConflict, domain.CodeNamingMismatch},
		{"protected", &domain.ProtectedError{Locator: "mem://a"}, http.StatusForbidden, ""},
		{"consistency", &domain.ConsistencyError{Attempts: 6}, http.StatusServiceUnavailable, ""},
		{"review unavailable", fmt.Errorf("run review: %w", domain.ErrReviewUnavailable), http.StatusServiceUnavailable, ""},
		{"storage", &domain.StorageError{Op: "put", Err: errors.New("timeout")}, http.StatusBadGateway, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := describeError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestDescribeError_HidesInternalDetail(t *testing.T) {
	_, body := describeError(errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal server error", body.Error)
}

func TestDescribeError_ConsistencyDetail(t *testing.T) {
	_, body := describeError(&domain.ConsistencyError{
		Field:    domain.FieldModelArtifactRef,
		Expected: "mem://new",
		Observed: "mem://old",
		Attempts: 6,
	})
	assert.Equal(t, "model_artifact_ref", body.Field)
	assert.Equal(t, "mem://new", body.Expected)
	assert.Equal(t, "mem://old", body.Actual)
	assert.Equal(t, 6, body.Attempts)
}
