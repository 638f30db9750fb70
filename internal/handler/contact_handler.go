package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/scoutier-backend/internal/controller"
	"github.com/unclebandit/scoutier-backend/internal/model"
	"github.com/unclebandit/scoutier-backend/internal/service"
)

// ContactHandler exposes the lead vault.
type ContactHandler struct {
	Service *service.ContactService
}

func (h *ContactHandler) CreateContactHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID    string `json:"user_id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Company   string `json:"company"`
		Position  string `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	contact := &model.Contact{
		UserID:    payload.UserID,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Company:   payload.Company,
		Position:  payload.Position,
	}
	if err := h.Service.AddContact(r.Context(), contact); err != nil {
		controller.WriteError(w, err)
		return
	}
	controller.WriteJSON(w, http.StatusCreated, contact)
}

func (h *ContactHandler) ListContactsHandler(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.Service.ListContacts(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		controller.WriteError(w, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]any{
		"data":  contacts,
		"count": len(contacts),
	})
}

func (h *ContactHandler) DeleteContactHandler(w http.ResponseWriter, r *http.Request) {
	err := h.Service.DeleteContact(r.Context(), r.URL.Query().Get("user_id"), chi.URLParam(r, "id"))
	if err != nil {
		controller.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
