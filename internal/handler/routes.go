package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unclebandit/scoutier-backend/internal/controller"
)

// Routes bundles everything the HTTP API serves.
type Routes struct {
	Campaigns          *controller.CampaignController
	Contacts           *ContactHandler
	Extraction         *ExtractionHandler
	Dispatch           *DispatchHandler
	ParseRatePerMinute int
}

// NewRouter wires the API routes.
func NewRouter(rt Routes) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.With(RateLimit(rt.ParseRatePerMinute)).Post("/parse", rt.Extraction.ParseHandler)

	r.Route("/contacts", func(r chi.Router) {
		r.Post("/", rt.Contacts.CreateContactHandler)
		r.Get("/", rt.Contacts.ListContactsHandler)
		r.Delete("/{id}", rt.Contacts.DeleteContactHandler)
	})

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", rt.Campaigns.CreateCampaign)
		r.Get("/", rt.Campaigns.ListCampaigns)
		r.Get("/{id}", rt.Campaigns.GetCampaignDetails)
		r.Delete("/{id}", rt.Campaigns.DeleteCampaign)
		r.Put("/{id}/audience", rt.Campaigns.SetAudience)
		r.Post("/{id}/start", rt.Campaigns.StartCampaign)
		r.Post("/{id}/pause", rt.Campaigns.PauseCampaign)
		r.Get("/{id}/logs", rt.Campaigns.CampaignLogs)
		r.Post("/{id}/personalized-preview", rt.Campaigns.PersonalizedPreview)
	})

	r.Post("/dispatch/tick", rt.Dispatch.TickHandler)

	return r
}
