package controllers

import (
	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/record"
	"github.com/rzbill/ringlog/internal/upload"
)

// recordJSON is one record in a list response.
type recordJSON struct {
	TimestampUs uint32  `json:"ts_us"`
	TimestampMs float64 `json:"ts_ms"`
	Event       int32   `json:"event"`
	Name        string  `json:"name"`
	Param       int32   `json:"param"`
	Text        string  `json:"text"`
}

func toRecordJSON(t *events.Table, r record.Record) recordJSON {
	return recordJSON{
		TimestampUs: r.Timestamp,
		TimestampMs: float64(r.Timestamp) / 1000,
		Event:       int32(r.Event),
		Name:        t.Bare(r.Event),
		Param:       r.Parameter,
		Text:        events.Format(t, r.Timestamp, r.Event, r.Parameter),
	}
}

type listResp struct {
	Records []recordJSON `json:"records"`
	Count   int          `json:"count"`
}

type countResp struct {
	Pending     int `json:"pending"`
	Overwritten int `json:"overwritten"`
	Capacity    int `json:"capacity"`
}

type drainResp struct {
	Drained int    `json:"drained"`
	File    string `json:"file"`
}

type uploadStatusResp struct {
	Running bool          `json:"running"`
	Last    upload.Result `json:"last"`
}
