package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-valuation/internal/api/handlers"
	"github.com/ndewijer/portfolio-valuation/internal/service"
	"github.com/ndewijer/portfolio-valuation/internal/testutil"
)

func TestSystemHandler_Health(t *testing.T) {
	t.Run("returns healthy status when database is connected", func(t *testing.T) {
		svcs, _ := setupServices(t, testutil.NewMockGateway())
		handler := handlers.NewSystemHandler(svcs.System)

		w := httptest.NewRecorder()
		handler.Health(w, httptest.NewRequest(http.MethodGet, "/api/system/health", nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		health := decodeJSON[handlers.HealthResponse](t, w)
		assert.Equal(t, "healthy", health.Status)
		assert.Equal(t, "connected", health.Database)
		assert.Empty(t, health.Error)
	})

	t.Run("returns 503 when database is disconnected", func(t *testing.T) {
		svcs, db := setupServices(t, testutil.NewMockGateway())
		handler := handlers.NewSystemHandler(svcs.System)

		// Close the database connection to simulate failure
		db.Close()

		w := httptest.NewRecorder()
		handler.Health(w, httptest.NewRequest(http.MethodGet, "/api/system/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		health := decodeJSON[handlers.HealthResponse](t, w)
		assert.Equal(t, "unhealthy", health.Status)
		assert.NotEmpty(t, health.Error)
	})
}

func TestSystemHandler_Version(t *testing.T) {
	t.Run("returns version information successfully", func(t *testing.T) {
		svcs, _ := setupServices(t, testutil.NewMockGateway())
		handler := handlers.NewSystemHandler(svcs.System)

		w := httptest.NewRecorder()
		handler.Version(w, httptest.NewRequest(http.MethodGet, "/api/system/version", nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		version := decodeJSON[service.VersionInfo](t, w)
		assert.Equal(t, service.Version, version.AppVersion)
		assert.Equal(t, version.LatestDbVersion, version.DbVersion)
		assert.False(t, version.MigrationNeeded)
	})

	t.Run("returns 500 when database is closed", func(t *testing.T) {
		svcs, db := setupServices(t, testutil.NewMockGateway())
		handler := handlers.NewSystemHandler(svcs.System)
		db.Close()

		w := httptest.NewRecorder()
		handler.Version(w, httptest.NewRequest(http.MethodGet, "/api/system/version", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "failed to get version information", decodeError(t, w).Error)
	})
}
