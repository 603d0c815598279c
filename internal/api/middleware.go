package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/punchamoorthee/nobreverify/internal/discord"
)

const maxInteractionBody = 1 << 20

// SignatureChecker validates the platform's request signature.
type SignatureChecker interface {
	Verify(signature, timestamp string, body []byte) bool
}

// RequireSignature rejects requests whose signature does not match before
// next runs. The body is buffered and handed to next unchanged.
func RequireSignature(checker SignatureChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInteractionBody))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					respondError(w, http.StatusRequestEntityTooLarge, "Request body too large", r.Method, r.URL.Path)
					return
				}
				respondError(w, http.StatusBadRequest, "Stream read error", r.Method, r.URL.Path)
				return
			}

			sig := r.Header.Get(discord.HeaderSignature)
			ts := r.Header.Get(discord.HeaderTimestamp)
			if !checker.Verify(sig, ts, body) {
				signatureRejections.Inc()
				logger.Warn("rejected interaction with invalid signature", "remote", r.RemoteAddr)
				respondError(w, http.StatusUnauthorized, "invalid request signature", r.Method, r.URL.Path)
				return
			}

			r.Body = io.NopCloser(bytes.NewBuffer(body))
			next.ServeHTTP(w, r)
		})
	}
}
