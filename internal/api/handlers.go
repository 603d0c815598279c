package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/nobreverify/internal/domain"
	"github.com/punchamoorthee/nobreverify/internal/store"
)

// AdminHandler exposes read-only ledger lookups for operators.
type AdminHandler struct {
	ledger store.Ledger
	token  string
}

func NewAdminHandler(l store.Ledger, token string) *AdminHandler {
	return &AdminHandler{ledger: l, token: token}
}

func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

// GetIdentity serves GET /admin/identities/{identity}.
func (a *AdminHandler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/admin/identities/{identity}"

	if !a.authorized(r) {
		respondError(w, http.StatusUnauthorized, "Unauthorized", "GET", endpoint)
		return
	}

	identity := domain.NormalizeIdentity(mux.Vars(r)["identity"])
	if identity == "" {
		respondError(w, http.StatusBadRequest, "Identity required", "GET", endpoint)
		return
	}

	used, err := a.ledger.Contains(r.Context(), identity)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Ledger unavailable", "GET", endpoint)
		return
	}
	resp := map[string]any{"identity": identity, "used": used}
	if getter, ok := a.ledger.(store.RecordGetter); ok && used {
		rec, err := getter.Get(r.Context(), identity)
		switch {
		case err == nil:
			resp["created_at"] = rec.CreatedAt
		case !errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusInternalServerError, "Ledger unavailable", "GET", endpoint)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp, "GET", endpoint)
}

func (a *AdminHandler) authorized(r *http.Request) bool {
	if a.token == "" {
		return false
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) == 1
}

// Helpers
func respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
