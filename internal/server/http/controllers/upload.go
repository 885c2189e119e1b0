package controllers

import (
	"errors"
	"net/http"

	"github.com/rzbill/ringlog/internal/runtime"
	"github.com/rzbill/ringlog/internal/upload"
)

// UploadController starts, stops and reports upload runs.
type UploadController struct {
	rt *runtime.Runtime
}

func NewUploadController(rt *runtime.Runtime) *UploadController {
	return &UploadController{rt: rt}
}

func (c *UploadController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/upload/start", c.handleStart)
	mux.HandleFunc("/v1/upload/stop", c.handleStop)
	mux.HandleFunc("/v1/upload/status", c.handleStatus)
}

// handleStart returns 202 when a run was started or there was nothing to
// send, 409 if a run is active.
func (c *UploadController) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	err := c.rt.StartUpload(r.Context())
	switch {
	case err == nil:
		writeJSONStatus(w, http.StatusAccepted, c.status())
	case errors.Is(err, upload.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, runtime.ErrUploadDisabled):
		writeError(w, http.StatusPreconditionFailed, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (c *UploadController) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	c.rt.StopUpload()
	writeNoContent(w)
}

func (c *UploadController) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, c.status())
}

func (c *UploadController) status() uploadStatusResp {
	u := c.rt.Uploader()
	return uploadStatusResp{Running: u.Running(), Last: u.Result()}
}
