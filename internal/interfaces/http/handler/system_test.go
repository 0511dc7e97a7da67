package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlease/backend/internal/interfaces/http/dto"
)

func serveSystemRoute(t *testing.T, handle gin.HandlerFunc, path string) dto.Response {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET(path, handle)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	return resp
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler()
	require.False(t, h.startTime.IsZero())

	resp := serveSystemRoute(t, h.GetSystemInfo, "/system/info")

	info := resp.Data.(map[string]interface{})
	assert.Equal(t, "FleetLease Billing API", info["name"])
	assert.Equal(t, "1.0.0", info["version"])
	assert.Contains(t, info["go_version"], "go")

	// Uptime is a parseable duration measured from handler construction.
	uptime, err := time.ParseDuration(info["uptime"].(string))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, uptime, time.Duration(0))
}

func TestSystemHandler_Ping(t *testing.T) {
	resp := serveSystemRoute(t, NewSystemHandler().Ping, "/system/ping")

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "pong", data["message"])

	_, err := time.Parse(time.RFC3339, data["timestamp"].(string))
	assert.NoError(t, err)
}
