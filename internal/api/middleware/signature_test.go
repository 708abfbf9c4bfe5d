package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"Linkboard/internal/trigger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireSignature(t *testing.T) {
	const base = "https://linkboard.example"
	signer := trigger.NewSigner("current-key")
	verifier := trigger.NewVerifier("current-key", "next-key")
	body := []byte(`{"kind":"arm"}`)

	var seen []byte
	handler := RequireSignature(verifier, base, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		seen, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid signature passes body through", func(t *testing.T) {
		sig, err := signer.Sign(base+"/resource/upvote/job/batch", body)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/resource/upvote/job/batch", bytes.NewReader(body))
		req.Header.Set(trigger.SignatureHeader, sig)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, body, seen)
	})

	t.Run("missing signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/resource/upvote/job/batch", bytes.NewReader(body))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "InvalidSignature")
	})

	t.Run("tampered body", func(t *testing.T) {
		sig, err := signer.Sign(base+"/resource/upvote/job/batch", body)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/resource/upvote/job/batch", bytes.NewReader([]byte(`{"kind":"rearm"}`)))
		req.Header.Set(trigger.SignatureHeader, sig)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("signed for another endpoint", func(t *testing.T) {
		sig, err := signer.Sign(base+"/resource/upvote/queue", body)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/resource/upvote/job/batch", bytes.NewReader(body))
		req.Header.Set(trigger.SignatureHeader, sig)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
