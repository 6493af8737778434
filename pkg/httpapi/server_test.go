package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glsp-mcp/forge/pkg/diagram"
)

type fakeHealthChecker struct {
	ok     bool
	detail map[string]string
}

func (f fakeHealthChecker) Healthy(ctx context.Context) (bool, map[string]string) {
	return f.ok, f.detail
}

func newTestServer(health HealthChecker) (*Server, *diagram.InMemoryStore) {
	gin.SetMode(gin.TestMode)
	store := diagram.NewInMemoryStore()
	return NewServer(health, store), store
}

func TestHealthHandler_Healthy(t *testing.T) {
	s, _ := newTestServer(fakeHealthChecker{ok: true, detail: map[string]string{"dataset_store": "ok"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	s, _ := newTestServer(fakeHealthChecker{ok: false, detail: map[string]string{"dataset_store": "connection lost"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDiagramHandlers_CreateGetListUpdateDelete(t *testing.T) {
	s, _ := newTestServer(fakeHealthChecker{ok: true})

	createBody := `{"id":"d1","name":"overview","nodes":[{"id":"n1","kind":"component","x":1,"y":2}],"edges":[]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagrams", bytes.NewBufferString(createBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/diagrams/d1", nil)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "overview", got["name"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/diagrams", nil)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list["diagrams"], 1)

	updateBody := `{"id":"ignored","name":"renamed","nodes":[],"edges":[]}`
	req = httptest.NewRequest(http.MethodPut, "/api/v1/diagrams/d1", bytes.NewBufferString(updateBody))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/diagrams/d1", nil)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/diagrams/d1", nil)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiagramHandlers_CreateRejectsMissingID(t *testing.T) {
	s, _ := newTestServer(fakeHealthChecker{ok: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagrams", bytes.NewBufferString(`{"name":"no id"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiagramHandlers_GetMissingReturns404(t *testing.T) {
	s, _ := newTestServer(fakeHealthChecker{ok: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/diagrams/missing", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiagramHandlers_UpdateMissingReturns404(t *testing.T) {
	s, _ := newTestServer(fakeHealthChecker{ok: true})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/diagrams/missing", bytes.NewBufferString(`{"id":"missing","name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
