package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/relaychat/internal/logger"
)

type fakeSource struct {
	conns   int32
	clients int
	rooms   int
}

func (f *fakeSource) ActiveConnections() int32 { return f.conns }
func (f *fakeSource) ClientCount() int         { return f.clients }
func (f *fakeSource) RoomCount() int           { return f.rooms }

func TestHealthEndpoints(t *testing.T) {
	logger.InitWithWriter(io.Discard, "ERROR")
	router := NewRouter(nil)

	for _, path := range []string{"/health", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), path)
	}
}

func TestStatusEndpoint(t *testing.T) {
	logger.InitWithWriter(io.Discard, "ERROR")
	router := NewRouter(&fakeSource{conns: 3, clients: 2, rooms: 1})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int32(3), resp.ActiveConnections)
	assert.Equal(t, 2, resp.Clients)
	assert.Equal(t, 1, resp.Rooms)
}

func TestRootRedirectsToHealth(t *testing.T) {
	logger.InitWithWriter(io.Discard, "ERROR")
	router := NewRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/health", rec.Header().Get("Location"))
}
