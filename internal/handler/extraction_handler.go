// internal/handler/extraction_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/unclebandit/scoutier-backend/internal/controller"
	"github.com/unclebandit/scoutier-backend/internal/extractor"
	"github.com/unclebandit/scoutier-backend/internal/logger"
	"github.com/unclebandit/scoutier-backend/internal/service"
)

// ExtractionHandler serves the paste-and-parse endpoint.
type ExtractionHandler struct {
	Contacts *service.ContactService
}

// ParseHandler extracts emails from the posted text. With ?format=csv the
// addresses come back as a downloadable CSV. When user_id and save are set
// the new addresses are also stored in the user's vault.
func (h *ExtractionHandler) ParseHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text   string `json:"text"`
		UserID string `json:"user_id"`
		Save   bool   `json:"save"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		controller.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		controller.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Text is required"})
		return
	}

	emails := extractor.ExtractEmails(payload.Text)

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="extracted_emails.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(extractor.GenerateCSV(emails)))
		return
	}

	resp := map[string]any{
		"success":   true,
		"emails":    emails,
		"count":     len(emails),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if payload.Save && h.Contacts != nil {
		created, err := h.Contacts.ImportText(r.Context(), payload.UserID, payload.Text)
		if err != nil {
			controller.WriteError(w, err)
			return
		}
		resp["saved"] = len(created)
	}

	logger.WithComponent("parse").WithField("count", len(emails)).Debug("text parsed")
	controller.WriteJSON(w, http.StatusOK, resp)
}
