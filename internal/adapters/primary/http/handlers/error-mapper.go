package handlers

import (
	"errors"
	"net/http"

	"asset-lifecycle-service/internal/adapters/primary/http/dto"
	"asset-lifecycle-service/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func mapDomainError(c *gin.Context, err error) {
	status, body := describeError(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("asset_id", c.Param("id")).Error("request failed")
	}
	_ = c.Error(err)
	c.JSON(status, body)
}

// describeError picks the HTTP status and the user-facing detail for err.
func describeError(err error) (int, dto.ErrorResponse) {
	var (
		validation  *domain.ValidationError
		conflict    *domain.ConflictError
		protected   *domain.ProtectedError
		consistency *domain.ConsistencyError
	)

	switch {
	// Not found errors
	case errors.Is(err, domain.ErrAssetNotFound),
		errors.Is(err, domain.ErrFeedbackNotFound),
		errors.Is(err, domain.ErrVersionNotFound),
		errors.Is(err, domain.ErrObjectNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Error: err.Error()}

	// Bad request / validation errors
	case errors.As(err, &validation):
		return http.StatusBadRequest, dto.ErrorResponse{
			Error:    validation.Error(),
			Field:    validation.Field,
			Expected: validation.Expected,
			Actual:   validation.Actual,
		}

	// Status guard errors
	case errors.As(err, &conflict):
		return http.StatusConflict, dto.ErrorResponse{Error: conflict.Detail, Code: conflict.Code}

	case errors.As(err, &protected):
		return http.StatusForbidden, dto.ErrorResponse{Error: protected.Error(), Actual: protected.Locator}

	// Service unavailable errors
	case errors.As(err, &consistency):
		return http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:    consistency.Error(),
			Field:    string(consistency.Field),
			Expected: consistency.Expected,
			Actual:   consistency.Observed,
			Attempts: consistency.Attempts,
		}
	case errors.Is(err, domain.ErrReviewUnavailable):
		return http.StatusServiceUnavailable, dto.ErrorResponse{Error: domain.ErrReviewUnavailable.Error()}

	case errors.Is(err, domain.ErrStorage):
		return http.StatusBadGateway, dto.ErrorResponse{Error: err.Error()}

	default:
		return http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"}
	}
}

func parseAssetID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid asset id", Field: "id", Actual: c.Param("id")})
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
}
