// Package health serves the liveness and readiness probes.
//
//   - /healthz — liveness; a process that can answer HTTP is alive.
//   - /readyz  — readiness; evaluates every registered probe and reports
//     per-probe status, error, and latency.
//
// Probes registered with [Handler.AddOptional] degrade the status without
// failing readiness: voxnote still serves cleaned transcripts when the LLM
// backend is down, so the LLM probe must not take the whole service out of
// rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single probe evaluation.
const probeTimeout = 5 * time.Second

// Check probes one dependency. It must respect context cancellation and
// return nil when the dependency is usable.
type Check func(ctx context.Context) error

type probe struct {
	name     string
	check    Check
	optional bool
}

// probeResult is the per-probe entry in the readiness response.
type probeResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// response is the JSON body for both endpoints. Status is "ok", "degraded"
// (an optional probe failed), or "unavailable" (a required probe failed).
type response struct {
	Status string                 `json:"status"`
	Checks map[string]probeResult `json:"checks,omitempty"`
}

// Handler evaluates registered probes on each /readyz request. Register all
// probes before serving; the probe list is not synchronized.
type Handler struct {
	probes []probe
}

// New returns a Handler with no probes. A probe-less /readyz always passes.
func New() *Handler {
	return &Handler{}
}

// Add registers a required probe. A failing required probe makes /readyz
// return 503.
func (h *Handler) Add(name string, c Check) {
	h.probes = append(h.probes, probe{name: name, check: c})
}

// AddOptional registers a probe whose failure degrades the reported status
// but keeps /readyz at 200.
func (h *Handler) AddOptional(name string, c Check) {
	h.probes = append(h.probes, probe{name: name, check: c, optional: true})
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz evaluates every probe in registration order, each under its own
// timeout derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := response{
		Status: "ok",
		Checks: make(map[string]probeResult, len(h.probes)),
	}
	code := http.StatusOK

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		start := time.Now()
		err := p.check(ctx)
		latency := time.Since(start).Milliseconds()
		cancel()

		pr := probeResult{Status: "ok", LatencyMS: latency}
		if err != nil {
			pr.Error = err.Error()
			if p.optional {
				pr.Status = "degraded"
				if resp.Status == "ok" {
					resp.Status = "degraded"
				}
			} else {
				pr.Status = "fail"
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		resp.Checks[p.name] = pr
	}

	writeJSON(w, code, resp)
}

// Register mounts both probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
