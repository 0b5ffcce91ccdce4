package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/csvbatch"
	"github.com/go-chi/chi"
)

func (h *Handler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Verify.Verify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "certificate "+v.Status, v)
}

// DocumentHandler serves the pinned HTML as is, in a CSP sandbox.
func (h *Handler) DocumentHandler(w http.ResponseWriter, r *http.Request) {
	_, doc, err := h.svc.Certificates.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "sandbox")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handler) StudentCertificatesHandler(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Students.Certificates(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "student certificates", out)
}

func (h *Handler) StudentHistoryHandler(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Students.History(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "student history", out)
}

// admin

func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Organizations.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "global stats", stats)
}

func (h *Handler) ListOrganizationsHandler(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.svc.Organizations.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "organizations", orgs)
}

func (h *Handler) RegisterOrganizationHandler(w http.ResponseWriter, r *http.Request) {
	var req models.OrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	tx, err := h.svc.Organizations.Register(r.Context(), sessionAddress(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "organization registered", Code: http.StatusCreated, Data: tx})
}

func (h *Handler) RevokeOrganizationHandler(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.Organizations.Revoke(r.Context(), sessionAddress(r.Context()), chi.URLParam(r, "address"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "organization revoked", tx)
}

func (h *Handler) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	entries, err := h.svc.Activity.Recent(r.Context(), r.URL.Query().Get("actor"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "activity", entries)
}

// organization

func (h *Handler) OrgCertificatesHandler(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Certificates.ListForOrganization(r.Context(), sessionAddress(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "certificates", out)
}

func (h *Handler) NextIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.Certificates.NextID(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "next certificate id", map[string]string{"certId": id})
}

func (h *Handler) IssueCertificateHandler(w http.ResponseWriter, r *http.Request) {
	var req csvbatch.Normalized
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	issued, err := h.svc.Certificates.Issue(r.Context(), sessionAddress(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "certificate issued", Code: http.StatusCreated, Data: issued})
}

func (h *Handler) RevokeCertificateHandler(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.Certificates.Revoke(r.Context(), sessionAddress(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "certificate revoked", tx)
}

func (h *Handler) AnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Analytics.Analytics(r.Context(), sessionAddress(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "analytics", out)
}
