package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/leaplineage/internal/layout"
	"github.com/leapstack-labs/leaplineage/internal/lineage"
	"github.com/leapstack-labs/leaplineage/internal/service"
)

type handlers struct {
	svc    *service.Service
	logger *slog.Logger
}

// errorResponse is the body of every 5xx reply.
type errorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// layoutResponse is the graph geometry served to the canvas.
type layoutResponse struct {
	GeneratedAt time.Time `json:"generatedAt"`
	*layout.Result
}

// lineageSignal is the datastar signal patched after every rebuild.
type lineageSignal struct {
	Generation  uint64    `json:"generation"`
	GeneratedAt time.Time `json:"generatedAt"`
	FileCount   int       `json:"fileCount"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
}

// healthResponse reports liveness plus the last broadcast generation and the
// number of open update streams.
type healthResponse struct {
	Status     string `json:"status"`
	Generation uint64 `json:"generation"`
	Listeners  int    `json:"listeners"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	n := h.svc.Notifier()
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:     "ok",
		Generation: n.Last(),
		Listeners:  n.Listeners(),
	})
}

func (h *handlers) lineage(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Graph(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to build lineage graph", err)
		return
	}
	writeJSON(w, r, http.StatusOK, g)
}

func (h *handlers) layout(w http.ResponseWriter, r *http.Request) {
	g, res, err := h.svc.Layout(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to lay out lineage graph", err)
		return
	}
	writeJSON(w, r, http.StatusOK, layoutResponse{GeneratedAt: g.GeneratedAt, Result: res})
}

// updates is the long-lived SSE endpoint. It sends the current generation
// once, then one signal patch per rebuild.
func (h *handlers) updates(w http.ResponseWriter, r *http.Request) {
	updates := h.svc.Notifier().Subscribe()
	defer h.svc.Notifier().Unsubscribe(updates)

	sse := datastar.NewSSE(w, r)

	if err := h.sendSignal(sse); err != nil {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := h.sendSignal(sse); err != nil {
				h.logger.Debug("update stream closed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (h *handlers) sendSignal(sse *datastar.ServerSentEventGenerator) error {
	g, gen := h.svc.Current()
	return sse.MarshalAndPatchSignals(map[string]any{"lineage": signalFor(g, gen)})
}

func signalFor(g *lineage.Graph, gen uint64) lineageSignal {
	sig := lineageSignal{Generation: gen}
	if g != nil {
		sig.GeneratedAt = g.GeneratedAt
		sig.FileCount = g.FileCount
		sig.Nodes = len(g.Nodes)
		sig.Edges = len(g.Edges)
	}
	return sig
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.logger.Error(message, slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	writeJSON(w, r, http.StatusInternalServerError, errorResponse{Message: message, Details: err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusMethodNotAllowed, errorResponse{Message: "Method Not Allowed"})
}

// writeJSON encodes v with no-store caching. ?pretty=true indents the output.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	if r.URL.Query().Get("pretty") == "true" {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}
