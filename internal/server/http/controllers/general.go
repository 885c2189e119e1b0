package controllers

import (
	"net/http"

	"github.com/rzbill/ringlog/internal/runtime"
)

// GeneralController serves health and status.
type GeneralController struct {
	rt *runtime.Runtime
}

func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers /v1/healthz and /v1/status.
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/status", c.handleStatus)
}

// handleHealth returns 200 {"status":"ok"} when healthy, 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStatus returns the region header, file and upload state.
func (c *GeneralController) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, c.rt.Status())
}
