package upvote

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"Linkboard/internal/core/upvotes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobHandler_Queue(t *testing.T) {
	handler := NewJobHandler(&mockUpvoteService{}, &mockProcessor{}, &mockReconciler{}, nil)

	t.Run("valid operation", func(t *testing.T) {
		op := upvotes.NewOperation("u1", "r1", upvotes.ActionAdd)
		raw, err := json.Marshal(op)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/resource/upvote/queue", bytes.NewReader(raw))
		w := httptest.NewRecorder()
		handler.HandleQueue(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "r1", body["resourceId"])
		assert.Equal(t, "add", body["action"])
	})

	t.Run("malformed operation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/resource/upvote/queue",
			bytes.NewReader([]byte(`{"userId":"u1","resourceId":"r1","action":"flip","timestamp":1}`)))
		w := httptest.NewRecorder()
		handler.HandleQueue(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "InvalidOperation", body["error"])
	})
}

func TestJobHandler_Batch(t *testing.T) {
	processor := &mockProcessor{result: &upvotes.BatchResult{Processed: 4, Failed: 1, Remaining: 7, Rearmed: true}}
	handler := NewJobHandler(&mockUpvoteService{}, processor, &mockReconciler{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/resource/upvote/job/batch", nil)
	w := httptest.NewRecorder()
	handler.HandleBatch(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp BatchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 4, resp.Processed)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, int64(7), resp.Remaining)
	assert.True(t, resp.Rearmed)
}

func TestJobHandler_BatchInfrastructureFailure(t *testing.T) {
	processor := &mockProcessor{err: errors.New("redis unavailable")}
	handler := NewJobHandler(&mockUpvoteService{}, processor, &mockReconciler{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/resource/upvote/job/batch", nil)
	w := httptest.NewRecorder()
	handler.HandleBatch(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestJobHandler_Reconcile(t *testing.T) {
	t.Run("corrected", func(t *testing.T) {
		reconciler := &mockReconciler{result: &upvotes.ReconcileResult{Scanned: 10, Corrected: 2, Skipped: 1}}
		handler := NewJobHandler(&mockUpvoteService{}, &mockProcessor{}, reconciler, nil)

		req := httptest.NewRequest(http.MethodPost, "/resource/upvote/job/reconcile", nil)
		w := httptest.NewRecorder()
		handler.HandleReconcile(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, float64(10), body["scanned"])
		assert.Equal(t, float64(2), body["corrected"])
		assert.Equal(t, float64(1), body["skipped"])
	})

	t.Run("backlog pending", func(t *testing.T) {
		reconciler := &mockReconciler{err: upvotes.ErrBacklogPending}
		handler := NewJobHandler(&mockUpvoteService{}, &mockProcessor{}, reconciler, nil)

		req := httptest.NewRequest(http.MethodPost, "/resource/upvote/job/reconcile", nil)
		w := httptest.NewRecorder()
		handler.HandleReconcile(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
