package routes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"Linkboard/internal/api/middleware"
	"Linkboard/internal/core/upvotes"
	"Linkboard/internal/trigger"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	upvotes.Service
	counted []string
}

func (s *stubService) Count(ctx context.Context, resourceID string) (int64, error) {
	s.counted = append(s.counted, resourceID)
	return 1, nil
}

func (s *stubService) HasVoted(ctx context.Context, userID, resourceID string) (bool, error) {
	return false, nil
}

type stubProcessor struct{ runs int }

func (p *stubProcessor) Run(ctx context.Context) (*upvotes.BatchResult, error) {
	p.runs++
	return &upvotes.BatchResult{}, nil
}

type stubReconciler struct{}

func (stubReconciler) Run(ctx context.Context) (*upvotes.ReconcileResult, error) {
	return &upvotes.ReconcileResult{}, nil
}

func newUpvoteRouter(service *stubService, processor *stubProcessor) http.Handler {
	r := chi.NewRouter()
	RegisterUpvoteRoutes(r, UpvoteRouteDeps{
		Service:    service,
		Processor:  processor,
		Reconciler: stubReconciler{},
		Auth:       middleware.NewAuthMiddleware("secret", nil),
		Signature:  middleware.RequireSignature(trigger.NewVerifier("signing-key", ""), "http://api.test", nil),
	})
	return r
}

func TestUpvoteRoutes_BatchRequiresSignature(t *testing.T) {
	processor := &stubProcessor{}
	router := newUpvoteRouter(&stubService{}, processor)

	req := httptest.NewRequest(http.MethodPost, upvotes.BatchJobPath, bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, processor.runs)

	sig, err := trigger.NewSigner("signing-key").Sign("http://api.test"+upvotes.BatchJobPath, []byte(`{}`))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, upvotes.BatchJobPath, bytes.NewReader([]byte(`{}`)))
	req.Header.Set(trigger.SignatureHeader, sig)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, processor.runs)
}

func TestUpvoteRoutes_ToggleRequiresAuth(t *testing.T) {
	router := newUpvoteRouter(&stubService{}, &stubProcessor{})

	req := httptest.NewRequest(http.MethodPatch, "/resource/upvote/r1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpvoteRoutes_CountIsPublic(t *testing.T) {
	service := &stubService{}
	router := newUpvoteRouter(service, &stubProcessor{})

	req := httptest.NewRequest(http.MethodGet, "/resource/upvote/r1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"r1"}, service.counted)
}
