package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gfearing/fearings-services/internal/estimator"
	"github.com/gfearing/fearings-services/internal/logger"
	"github.com/gfearing/fearings-services/internal/middleware"
	"github.com/gfearing/fearings-services/internal/model"
	"github.com/gfearing/fearings-services/internal/session"
	"github.com/gin-gonic/gin"
)

// Submitter runs one estimate cycle for a session
type Submitter interface {
	Submit(ctx context.Context, sess *estimator.Session, jobDescription string) (estimator.Snapshot, error)
}

// EstimateHandler handles the estimator API
type EstimateHandler struct {
	service Submitter
	store   *session.Store
}

// NewEstimateHandler creates a new estimate handler
func NewEstimateHandler(service Submitter, store *session.Store) *EstimateHandler {
	return &EstimateHandler{
		service: service,
		store:   store,
	}
}

// Submit requests an estimate for the visitor's job description
// @Summary Request an estimate
// @Tags estimator
// @Accept json
// @Produce json
// @Param request body model.EstimateRequest true "Job description"
// @Success 200 {object} model.Response
// @Failure 409 {object} model.ErrorResponse
// @Failure 422 {object} model.ErrorResponse
// @Failure 502 {object} model.ErrorResponse
// @Router /api/estimate [post]
func (h *EstimateHandler) Submit(c *gin.Context) {
	var req model.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
		})
		return
	}

	sess := h.store.GetOrCreate(middleware.GetSessionID(c))
	description := middleware.SanitizeJobDescription(req.JobDescription)

	snap, err := h.service.Submit(c.Request.Context(), sess, description)
	if err != nil {
		h.handleError(c, err, snap)
		return
	}

	if snap.Status == estimator.StatusFailed {
		c.JSON(http.StatusBadGateway, model.ErrorResponse{
			Success: false,
			Error:   snap.Error,
			Code:    "ESTIMATE_FAILED",
			Data:    snap,
		})
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    snap,
	})
}

// Current returns the visitor's current estimate state
// @Summary Current estimate state
// @Tags estimator
// @Produce json
// @Success 200 {object} model.Response
// @Router /api/estimate [get]
func (h *EstimateHandler) Current(c *gin.Context) {
	sess := h.store.GetOrCreate(middleware.GetSessionID(c))
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    sess.Snapshot(),
	})
}

// handleError maps submission errors to HTTP responses
func (h *EstimateHandler) handleError(c *gin.Context, err error, snap estimator.Snapshot) {
	switch {
	case errors.Is(err, model.ErrEmptyDescription):
		c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{
			Success: false,
			Error:   model.ValidationMessage,
			Code:    "VALIDATION_ERROR",
			Data:    snap,
		})
	case errors.Is(err, model.ErrEstimateInFlight):
		c.JSON(http.StatusConflict, model.ErrorResponse{
			Success: false,
			Error:   model.InFlightMessage,
			Code:    "ESTIMATE_IN_FLIGHT",
			Data:    snap,
		})
	default:
		logger.FromGin(c).Error().Err(err).Msg("Unexpected estimate error")
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Error:   model.GenericFailureMessage,
			Code:    "INTERNAL_ERROR",
		})
	}
}
