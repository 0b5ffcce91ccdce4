package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/go-chi/jwtauth"
)

const (
	claimAddress = "address"
	claimRole    = "role"
)

type nonceRequest struct {
	Address string `json:"address"`
}

type loginRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

func (h *Handler) NonceHandler(w http.ResponseWriter, r *http.Request) {
	var req nonceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	n, err := h.svc.Sessions.Nonce(req.Address)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "sign this message with your wallet", n)
}

// LoginHandler exchanges a signed nonce for a session token.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	session, err := h.svc.Sessions.Login(r.Context(), req.Address, req.Signature)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	session.ExpiresAt = h.now().Add(h.jwtTTL).UTC()
	claims := map[string]interface{}{
		claimAddress: session.Address,
		claimRole:    string(session.Role),
	}
	jwtauth.SetExpiry(claims, session.ExpiresAt)

	_, token, err := h.tokenAuth.Encode(claims)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	session.Token = token

	h.ok(w, "logged in as "+string(session.Role), session)
}

// SessionHandler re-resolves the role so a revoked organization sees it immediately.
func (h *Handler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Sessions.Resolve(r.Context(), sessionAddress(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "session", session)
}

// LogoutHandler only acknowledges; tokens are stateless and the client drops its copy.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "logged out", nil)
}

func sessionClaims(ctx context.Context) map[string]interface{} {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil || claims == nil {
		return map[string]interface{}{}
	}
	return claims
}

func sessionAddress(ctx context.Context) string {
	addr, _ := sessionClaims(ctx)[claimAddress].(string)
	return addr
}

func sessionRole(ctx context.Context) models.Role {
	role, _ := sessionClaims(ctx)[claimRole].(string)
	return models.Role(role)
}

// RequireRole rejects tokens minted for another role.
func (h *Handler) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessionRole(r.Context()) != role || sessionAddress(r.Context()) == "" {
				h.CreateResponse(w, Response{
					Message: http.StatusText(http.StatusForbidden),
					Code:    http.StatusForbidden,
					Error:   string(role) + " role required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
