package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusNotFound, CodeNotFound, "not found", map[string]string{"path": "/api/x"}))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, CodeNotFound, env.Code)
	require.Equal(t, "/api/x", env.Meta["path"])
}

func TestWriteJSON_NilPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusNoContent, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.String())
	require.NoError(t, WriteJSON(nil, http.StatusOK, map[string]string{}))
}
