// Package http provides HTTP handlers for article integration deliveries.
package http

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	articleDomain "github.com/memorylib/integrator/internal/article/domain"
	"github.com/memorylib/integrator/internal/article/http/dto"
	articleUseCase "github.com/memorylib/integrator/internal/article/usecase"
	"github.com/memorylib/integrator/internal/httputil"
	customValidation "github.com/memorylib/integrator/internal/validation"
)

// PushHandler handles push-subscription deliveries that trigger article
// integration.
type PushHandler struct {
	integrationUseCase articleUseCase.IntegrationUseCase
	logger             *slog.Logger
}

// NewPushHandler creates a new push handler with required dependencies.
func NewPushHandler(
	integrationUseCase articleUseCase.IntegrationUseCase,
	logger *slog.Logger,
) *PushHandler {
	return &PushHandler{
		integrationUseCase: integrationUseCase,
		logger:             logger,
	}
}

// HandlePush processes one push delivery.
// POST / - The envelope's message data carries the base64-encoded document id.
// Returns 204 for moved/already archived and 200 for rejected, both of which
// acknowledge the delivery. Returns 503 after transient retries are exhausted
// and 500 for unclassified failures, which make the subscription redeliver.
func (h *PushHandler) HandlePush(c *gin.Context) {
	var req dto.PushRequest

	// Parse and bind JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	// Validate envelope
	if err := req.Validate(); err != nil {
		httputil.HandleBadRequestGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	// Decode base64 document id
	rawID, err := base64.StdEncoding.DecodeString(req.Message.Data)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	result := h.integrationUseCase.Integrate(c.Request.Context(), string(rawID))

	switch result.Outcome {
	case articleDomain.OutcomeMoved, articleDomain.OutcomeAlreadyMoved:
		c.Data(http.StatusNoContent, "application/json", nil)

	case articleDomain.OutcomeRejected:
		// Acknowledged with a body: redelivery can never fix the instruction.
		c.JSON(http.StatusOK, dto.MapResultToResponse(result))

	default:
		status := http.StatusInternalServerError
		if result.Retryable() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, dto.MapResultToResponse(result))
	}
}
