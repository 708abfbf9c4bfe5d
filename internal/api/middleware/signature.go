package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"Linkboard/internal/trigger"
)

// maxTriggerBody bounds the body read for signature verification
const maxTriggerBody = 1 << 20

// SignatureVerifier checks trigger callbacks
type SignatureVerifier interface {
	Verify(signature, url string, body []byte) error
}

// RequireSignature rejects requests whose Upstash-Signature does not cover
// the raw body. baseURL is the public origin the callback was addressed to;
// when empty the token subject is not checked. The body is restored for the
// next handler.
func RequireSignature(verifier SignatureVerifier, baseURL string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxTriggerBody+1))
			if err != nil {
				writeSignatureError(w, "Failed to read request body")
				return
			}
			if len(body) > maxTriggerBody {
				writeSignatureError(w, "Request body too large")
				return
			}

			url := ""
			if baseURL != "" {
				url = baseURL + r.URL.Path
			}
			if err := verifier.Verify(r.Header.Get(trigger.SignatureHeader), url, body); err != nil {
				logger.Warn("trigger signature rejected",
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"error", err)
				writeSignatureError(w, "Signature verification failed")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func writeSignatureError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   "InvalidSignature",
		"message": message,
	}); err != nil {
		slog.Error("failed to write signature error response", "error", err)
	}
}
