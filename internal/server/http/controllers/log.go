package controllers

import (
	"net/http"

	"github.com/rzbill/ringlog/internal/runtime"
)

// LogController exposes the ring buffer and log files.
type LogController struct {
	rt *runtime.Runtime
}

func NewLogController(rt *runtime.Runtime) *LogController {
	return &LogController{rt: rt}
}

// RegisterRoutes registers the /v1/log endpoints.
func (c *LogController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/log", c.handleList)
	mux.HandleFunc("/v1/log/count", c.handleCount)
	mux.HandleFunc("/v1/log/drain", c.handleDrain)
	mux.HandleFunc("/v1/log/dump", c.handleDump)
}

// handleList returns current-file and in-memory records as JSON without
// consuming them.
//
// Query: filter (CEL expression), limit (newest N).
func (c *LogController) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	recs, err := c.rt.Records(q.Get("filter"), parseLimit(q.Get("limit")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	table := c.rt.Table()
	items := make([]recordJSON, 0, len(recs))
	for _, rec := range recs {
		items = append(items, toRecordJSON(table, rec))
	}
	writeJSON(w, listResp{Records: items, Count: len(items)})
}

// handleCount returns the unread and overwritten counters.
func (c *LogController) handleCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s := c.rt.Store()
	writeJSON(w, countResp{Pending: s.Count(), Overwritten: s.Overwritten(), Capacity: s.Capacity()})
}

// handleDrain runs one drain cycle.
func (c *LogController) handleDrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	n, err := c.rt.Drain()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, drainResp{Drained: n, File: c.rt.Files().Current()})
}

// handleDump writes the text dump.
func (c *LogController) handleDump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := c.rt.Dump(w, r.URL.Query().Get("filter")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
