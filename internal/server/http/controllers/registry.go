package controllers

import (
	"net/http"

	"github.com/rzbill/ringlog/internal/runtime"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	log     *LogController
	upload  *UploadController
}

// NewControllerRegistry creates the controllers over rt.
func NewControllerRegistry(rt *runtime.Runtime) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		log:     NewLogController(rt),
		upload:  NewUploadController(rt),
	}
}

// RegisterAllRoutes registers all controller routes with mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.log.RegisterRoutes(mux)
	r.upload.RegisterRoutes(mux)
}
