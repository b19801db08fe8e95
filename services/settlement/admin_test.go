package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func adminRequest(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminServer(t *testing.T) {
	store := newTestStore(t)
	job := enqueue(t, store, "1")
	proc, _ := newTestProcessor(store, &fakeDispatcher{})
	srv := NewAdminServer(proc, store, "admin-token")

	require.Equal(t, http.StatusOK, adminRequest(t, srv, http.MethodGet, "/healthz", "").Code)
	require.Equal(t, http.StatusUnauthorized, adminRequest(t, srv, http.MethodGet, "/status", "").Code)
	require.Equal(t, http.StatusUnauthorized, adminRequest(t, srv, http.MethodGet, "/status", "wrong").Code)

	rec := adminRequest(t, srv, http.MethodPost, "/pause", "admin-token")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, proc.Paused())

	rec = adminRequest(t, srv, http.MethodGet, "/status", "admin-token")
	require.Equal(t, http.StatusOK, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.True(t, status.Paused)
	require.EqualValues(t, 1, status.Pending)

	require.Equal(t, http.StatusNoContent, adminRequest(t, srv, http.MethodPost, "/resume", "admin-token").Code)
	require.False(t, proc.Paused())

	rec = adminRequest(t, srv, http.MethodGet, "/jobs?status=pending", "admin-token")
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	require.Equal(t, job.ID, jobs[0].ID)

	require.Equal(t, http.StatusBadRequest, adminRequest(t, srv, http.MethodGet, "/jobs?status=bogus", "admin-token").Code)
	require.Equal(t, http.StatusBadRequest, adminRequest(t, srv, http.MethodGet, "/jobs?limit=-1", "admin-token").Code)
	require.Equal(t, http.StatusBadRequest, adminRequest(t, srv, http.MethodPost, "/jobs/xyz/retry", "admin-token").Code)
	require.Equal(t, http.StatusNotFound,
		adminRequest(t, srv, http.MethodPost, "/jobs/00000000-0000-0000-0000-000000000001/retry", "admin-token").Code)

	_, err := proc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict,
		adminRequest(t, srv, http.MethodPost, "/jobs/"+job.ID.String()+"/retry", "admin-token").Code)
}
