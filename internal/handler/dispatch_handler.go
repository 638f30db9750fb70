package handler

import (
	"net/http"

	"github.com/unclebandit/scoutier-backend/internal/controller"
	"github.com/unclebandit/scoutier-backend/internal/service"
)

// DispatchHandler lets an external scheduler drive the engine.
type DispatchHandler struct {
	Engine service.Ticker
}

// TickHandler runs one tick synchronously and returns its report.
func (h *DispatchHandler) TickHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.Engine.Tick(r.Context())
	if err != nil {
		controller.WriteError(w, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, report)
}
