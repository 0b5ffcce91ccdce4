package handlers

import (
	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes
		r.Get("/health", h.HealthHandler)
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/csv/template", h.TemplateHandler)
		r.Get("/verify/{id}", h.VerifyHandler)
		r.Get("/certificates/{id}/document", h.DocumentHandler)
		r.Get("/students/{address}/certificates", h.StudentCertificatesHandler)
		r.Get("/students/{address}/history", h.StudentHistoryHandler)
		r.Post("/auth/nonce", h.NonceHandler)
		r.Post("/auth/login", h.LoginHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/session", h.SessionHandler)
			r.Delete("/session", h.LogoutHandler)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireRole(models.RoleAdmin))

				r.Get("/admin/stats", h.StatsHandler)
				r.Get("/organizations", h.ListOrganizationsHandler)
				r.Post("/organizations", h.RegisterOrganizationHandler)
				r.Delete("/organizations/{address}", h.RevokeOrganizationHandler)
				r.Get("/activity", h.ActivityHandler)
			})

			r.Route("/org", func(r chi.Router) {
				r.Use(h.RequireRole(models.RoleOrganization))

				r.Get("/certificates", h.OrgCertificatesHandler)
				r.Get("/certificates/next-id", h.NextIDHandler)
				r.Post("/certificates", h.IssueCertificateHandler)
				r.Post("/certificates/{id}/revoke", h.RevokeCertificateHandler)
				r.Get("/analytics", h.AnalyticsHandler)

				r.Get("/batches", h.ListBatchesHandler)
				r.Post("/batches", h.UploadBatchHandler)
				r.Get("/batches/{batchID}", h.GetBatchHandler)
				r.Patch("/batches/{batchID}/rows/{index}", h.EditRowHandler)
				r.Post("/batches/{batchID}/issue", h.SubmitBatchHandler)
				r.Get("/batches/{batchID}/results", h.BatchResultsHandler)
				r.Get("/batches/{batchID}/results.csv", h.BatchResultsCSVHandler)
			})
		})
	})
}
