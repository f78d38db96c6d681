package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/memorylib/integrator/internal/article/http/dto"
	articleUseCase "github.com/memorylib/integrator/internal/article/usecase"
	"github.com/memorylib/integrator/internal/httputil"
)

// StatusHandler reports store occupancy.
type StatusHandler struct {
	statusUseCase articleUseCase.StatusUseCase
	logger        *slog.Logger
}

// NewStatusHandler creates a new status handler with required dependencies.
func NewStatusHandler(statusUseCase articleUseCase.StatusUseCase, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		statusUseCase: statusUseCase,
		logger:        logger,
	}
}

// HandleStatus returns staged and archived document counts.
// GET /status
func (h *StatusHandler) HandleStatus(c *gin.Context) {
	snapshot, err := h.statusUseCase.Snapshot(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSnapshotToResponse(snapshot))
}
