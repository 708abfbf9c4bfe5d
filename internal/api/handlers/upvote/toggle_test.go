package upvote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"Linkboard/internal/api/middleware"
	"Linkboard/internal/core/upvotes"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withRouteID injects the chi {id} URL parameter
func withRouteID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestToggleHandler_Success(t *testing.T) {
	var gotUser, gotResource string
	service := &mockUpvoteService{
		toggleFunc: func(ctx context.Context, userID, resourceID string) (*upvotes.ToggleResult, error) {
			gotUser, gotResource = userID, resourceID
			return &upvotes.ToggleResult{ResourceID: resourceID, Action: "added", Count: 6}, nil
		},
	}
	handler := NewToggleHandler(service)

	req := httptest.NewRequest(http.MethodPatch, "/resource/upvote/r1", nil)
	req = withRouteID(req, "r1")
	req = req.WithContext(middleware.SetTestUserID(req.Context(), "u1"))
	w := httptest.NewRecorder()

	handler.HandleToggle(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, "r1", gotResource)

	var resp ToggleResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "r1", resp.ResourceID)
	assert.Equal(t, int64(6), resp.Count)
	assert.Equal(t, "added", resp.Action)
}

func TestToggleHandler_RequiresAuth(t *testing.T) {
	called := false
	service := &mockUpvoteService{
		toggleFunc: func(ctx context.Context, userID, resourceID string) (*upvotes.ToggleResult, error) {
			called = true
			return nil, nil
		},
	}
	handler := NewToggleHandler(service)

	req := withRouteID(httptest.NewRequest(http.MethodPatch, "/resource/upvote/r1", nil), "r1")
	w := httptest.NewRecorder()

	handler.HandleToggle(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestToggleHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"not found", upvotes.ErrResourceNotFound, http.StatusNotFound, "ResourceNotFound"},
		{"wrapped not found", errors.Join(errors.New("lookup"), upvotes.ErrResourceNotFound), http.StatusNotFound, "ResourceNotFound"},
		{"unauthenticated", upvotes.ErrUnauthenticated, http.StatusUnauthorized, "AuthRequired"},
		{"contended", upvotes.ErrToggleContended, http.StatusConflict, "ToggleConflict"},
		{"store down", errors.New("connection refused"), http.StatusInternalServerError, "InternalError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockUpvoteService{
				toggleFunc: func(ctx context.Context, userID, resourceID string) (*upvotes.ToggleResult, error) {
					return nil, tt.err
				},
			}
			handler := NewToggleHandler(service)

			req := withRouteID(httptest.NewRequest(http.MethodPatch, "/resource/upvote/r1", nil), "r1")
			req = req.WithContext(middleware.SetTestUserID(req.Context(), "u1"))
			w := httptest.NewRecorder()

			handler.HandleToggle(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestGetHandler_ViewerFlag(t *testing.T) {
	service := &mockUpvoteService{
		countFunc: func(ctx context.Context, resourceID string) (int64, error) {
			return 3, nil
		},
		hasVotedFunc: func(ctx context.Context, userID, resourceID string) (bool, error) {
			return userID == "u1", nil
		},
	}
	handler := NewGetHandler(service)

	t.Run("anonymous", func(t *testing.T) {
		req := withRouteID(httptest.NewRequest(http.MethodGet, "/resource/upvote/r1", nil), "r1")
		w := httptest.NewRecorder()
		handler.HandleGet(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp StatusResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, StatusResponse{ResourceID: "r1", Count: 3}, resp)
	})

	t.Run("voter", func(t *testing.T) {
		req := withRouteID(httptest.NewRequest(http.MethodGet, "/resource/upvote/r1", nil), "r1")
		req = req.WithContext(middleware.SetTestUserID(req.Context(), "u1"))
		w := httptest.NewRecorder()
		handler.HandleGet(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp StatusResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Upvoted)
	})
}

func TestGetHandler_FlagFailureStillAnswers(t *testing.T) {
	service := &mockUpvoteService{
		countFunc: func(ctx context.Context, resourceID string) (int64, error) {
			return 2, nil
		},
		hasVotedFunc: func(ctx context.Context, userID, resourceID string) (bool, error) {
			return false, errors.New("timeout")
		},
	}
	handler := NewGetHandler(service)

	req := withRouteID(httptest.NewRequest(http.MethodGet, "/resource/upvote/r1", nil), "r1")
	req = req.WithContext(middleware.SetTestUserID(req.Context(), "u1"))
	w := httptest.NewRecorder()
	handler.HandleGet(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(2), resp.Count)
	assert.False(t, resp.Upvoted)
}
