package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/punchamoorthee/nobreverify/internal/domain"
	"github.com/punchamoorthee/nobreverify/internal/service"
)

const UnsupportedCommandMessage = "Comando não suportado."

// Verifier runs the purchase verification workflow.
type Verifier interface {
	Verify(ctx context.Context, identity, userID string) service.Result
}

type Handler struct {
	verifier Verifier
	logger   *slog.Logger
}

func NewHandler(v Verifier, logger *slog.Logger) *Handler {
	return &Handler{verifier: v, logger: logger}
}

// Interactions serves POST /. It expects RequireSignature in front of it.
func (h *Handler) Interactions(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/"))
	defer timer.ObserveDuration()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Stream read error", "POST", "/")
		return
	}

	var in domain.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/")
		return
	}

	respondJSON(w, http.StatusOK, h.Dispatch(r.Context(), &in), "POST", "/")
}

// Dispatch builds the response for an authenticated interaction.
func (h *Handler) Dispatch(ctx context.Context, in *domain.Interaction) domain.InteractionResponse {
	if in.Type == domain.InteractionPing {
		interactionsTotal.WithLabelValues("ping").Inc()
		return domain.PongResponse()
	}

	if in.Data == nil {
		interactionsTotal.WithLabelValues("unsupported").Inc()
		return domain.MessageResponse(UnsupportedCommandMessage)
	}

	switch in.Data.Name {
	case domain.CommandVerify:
		interactionsTotal.WithLabelValues(domain.CommandVerify).Inc()
		return domain.MessageResponse(h.verify(ctx, in))

	case domain.CommandEcho:
		interactionsTotal.WithLabelValues(domain.CommandEcho).Inc()
		var msg string
		if len(in.Data.Options) > 0 {
			msg = in.Data.Options[0].Value
		}
		return domain.MessageResponse("Echoing: " + msg)

	default:
		interactionsTotal.WithLabelValues("unsupported").Inc()
		h.logger.Info("unsupported command", "command", in.Data.Name)
		return domain.MessageResponse(UnsupportedCommandMessage)
	}
}

func (h *Handler) verify(ctx context.Context, in *domain.Interaction) string {
	identity, ok := in.Data.Option(domain.OptionIdentity)
	if !ok || identity == "" {
		verificationsTotal.WithLabelValues(string(service.StatusMissingIdentity)).Inc()
		return service.StatusMissingIdentity.Message()
	}

	res := h.verifier.Verify(ctx, identity, in.InvokerID())
	verificationsTotal.WithLabelValues(string(res.Status)).Inc()
	if res.RoleErr != nil {
		sideEffectFailures.WithLabelValues("role").Inc()
	}
	if res.NotifyErr != nil {
		sideEffectFailures.WithLabelValues("dm").Inc()
	}
	return res.Message()
}
