// Package api exposes the conversion engine over HTTP: synchronous
// conversion, pipeline and preset introspection, health and Prometheus
// metrics.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psantana5/mediaconv/pkg/converter"
	"github.com/psantana5/mediaconv/pkg/format"
	"github.com/psantana5/mediaconv/pkg/logging"
	"github.com/psantana5/mediaconv/pkg/middleware"
)

// ConvertRequest is the POST /api/convert payload
type ConvertRequest struct {
	Input         string `json:"input"`
	Output        string `json:"output"`
	Preset        string `json:"preset,omitempty"`
	ForceReencode bool   `json:"force_reencode,omitempty"`
	ProbeInput    bool   `json:"probe_input,omitempty"`
}

// ConvertResponse mirrors the interesting parts of a job outcome
type ConvertResponse struct {
	JobID       string   `json:"job_id"`
	Success     bool     `json:"success"`
	Cancelled   bool     `json:"cancelled"`
	Pipeline    string   `json:"pipeline,omitempty"`
	StreamCopy  bool     `json:"stream_copy,omitempty"`
	Attempts    int      `json:"attempts"`
	DurationMS  int64    `json:"duration_ms"`
	Error       string   `json:"error,omitempty"`
	Category    string   `json:"category,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// PipelineResponse is one entry of GET /api/pipelines
type PipelineResponse struct {
	Name       string `json:"name"`
	Input      string `json:"input"`
	Output     string `json:"output"`
	VideoCodec string `json:"video_codec,omitempty"`
	AudioCodec string `json:"audio_codec"`
}

// Handler serves the conversion API
type Handler struct {
	Converter *converter.Converter
	Logger    *logging.Logger
	Registry  *prometheus.Registry
}

// NewHandler creates a Handler for the given engine
func NewHandler(conv *converter.Converter, logger *logging.Logger, reg *prometheus.Registry) *Handler {
	return &Handler{Converter: conv, Logger: logger, Registry: reg}
}

// Router builds the HTTP route table with logging and panic recovery
// middleware applied
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	if h.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.Registry, promhttp.HandlerOpts{}))
	}
	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/pipelines", h.HandlePipelines).Methods(http.MethodGet)
	r.HandleFunc("/api/presets/{format}", h.HandlePresets).Methods(http.MethodGet)
	r.HandleFunc("/api/convert", h.HandleConvert).Methods(http.MethodPost)

	var handler http.Handler = r
	handler = middleware.RequestLogging(h.Logger)(handler)
	handler = middleware.Recover(h.Logger)(handler)
	return handler
}

// HandleHealth answers liveness probes
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// HandlePipelines lists every registered conversion pipeline
func (h *Handler) HandlePipelines(w http.ResponseWriter, r *http.Request) {
	out := make([]PipelineResponse, 0)
	for _, desc := range h.Converter.AvailablePipelines() {
		out = append(out, PipelineResponse{
			Name:       desc.Name(),
			Input:      string(desc.Input),
			Output:     string(desc.Output),
			VideoCodec: desc.PreferredVideoCodec,
			AudioCodec: desc.PreferredAudioCodec,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandlePresets lists the quality preset names for one output format
func (h *Handler) HandlePresets(w http.ResponseWriter, r *http.Request) {
	tag, err := format.Parse(mux.Vars(r)["format"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"format":  string(tag),
		"presets": h.Converter.QualityPresets(tag),
	})
}

// HandleConvert runs one conversion synchronously. The request context
// carries cancellation: a dropped client aborts the encode.
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Input == "" || req.Output == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input and output are required"})
		return
	}

	outcome := h.Converter.Convert(r.Context(), converter.Job{
		InputPath:     req.Input,
		OutputPath:    req.Output,
		QualityPreset: req.Preset,
		ForceReencode: req.ForceReencode,
		ProbeInput:    req.ProbeInput,
	})

	resp := ConvertResponse{
		JobID:      outcome.JobID,
		Success:    outcome.Success,
		Cancelled:  outcome.Cancelled,
		Pipeline:   outcome.Pipeline,
		StreamCopy: outcome.StreamCopy,
		Attempts:   outcome.Attempts,
		DurationMS: outcome.Duration.Milliseconds(),
	}
	status := http.StatusOK
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
		resp.Category = string(outcome.Category)
		resp.Suggestions = outcome.Suggestions
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
