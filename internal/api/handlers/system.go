package handlers

import (
	"net/http"

	"github.com/ndewijer/portfolio-valuation/internal/api/response"
	"github.com/ndewijer/portfolio-valuation/internal/service"
)

// SystemHandler serves liveness and version probes. Its routes need no user.
type SystemHandler struct {
	systemService *service.SystemService
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(systemService *service.SystemService) *SystemHandler {
	return &SystemHandler{systemService: systemService}
}

// HealthResponse is the body of the health probe.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// Health reports whether the snapshot database answers.
//
// Endpoint: GET /api/system/health
// Response: 200 OK when the database is reachable, 503 Service Unavailable otherwise
func (h *SystemHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	status, body := http.StatusOK, HealthResponse{Status: "healthy", Database: "connected"}
	if err := h.systemService.CheckHealth(); err != nil {
		status = http.StatusServiceUnavailable
		body = HealthResponse{Status: "unhealthy", Database: "disconnected", Error: err.Error()}
	}

	response.RespondJSON(w, status, body)
}

// Version reports the application version and whether schema migrations are pending.
//
// Endpoint: GET /api/system/version
// Response: 200 OK with service.VersionInfo
// Error: 500 Internal Server Error if the schema version cannot be read
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	version, err := h.systemService.CheckVersion(r.Context())
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to get version information", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, version)
}
