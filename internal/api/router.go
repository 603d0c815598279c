package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the interaction endpoint behind signature verification,
// plus health, metrics and, when admin is non-nil, the ledger lookup.
func NewRouter(h *Handler, checker SignatureChecker, admin *AdminHandler, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", HealthCheckHandler).Methods("GET")

	interactions := RequireSignature(checker, logger)(http.HandlerFunc(h.Interactions))
	r.Handle("/", interactions).Methods("POST")

	if admin != nil {
		r.HandleFunc("/admin/identities/{identity}", admin.GetIdentity).Methods("GET")
	}
	return r
}
