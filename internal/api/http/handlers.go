package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cpcatalog/cpcatalog/internal/catalog"
	cperrors "github.com/cpcatalog/cpcatalog/internal/errors"
	"github.com/cpcatalog/cpcatalog/internal/eventlog"
	"github.com/cpcatalog/cpcatalog/internal/ingest"
	"github.com/cpcatalog/cpcatalog/internal/observability"
)

// Handlers owns the route handlers for the catalog API.
type Handlers struct {
	pipeline *ingest.Pipeline
	events   *eventlog.Log
	stats    *observability.Stats
}

// NewHandlers creates the handler set.
func NewHandlers(pipeline *ingest.Pipeline, events *eventlog.Log, stats *observability.Stats) *Handlers {
	return &Handlers{pipeline: pipeline, events: events, stats: stats}
}

// Register mounts every route on mux. The /v1 routes get the full
// middleware chain; /health bypasses auth so probes need no credential.
func (h *Handlers) Register(mux *http.ServeMux, chain func(http.Handler) http.Handler) {
	mux.Handle("/v1/computing_ids", chain(http.HandlerFunc(h.RegisterComputingIDs)))
	mux.Handle("/v1/computing_resources", chain(http.HandlerFunc(h.RegisterComputingResources)))
	mux.Handle("/v1/query_computing_resources", chain(h.eventHandler(catalog.EventKindQuery)))
	mux.Handle("/v1/query_computing_resources_by_task_template", chain(h.eventHandler(catalog.EventKindTaskTemplate)))
	mux.Handle("/v1/task_path", chain(h.eventHandler(catalog.EventKindTaskResult)))
	mux.Handle("/v1/stats", chain(http.HandlerFunc(h.Stats)))
	mux.HandleFunc("/health", h.Health)
}

// registerIDsRequest is the body of POST /v1/computing_ids.
type registerIDsRequest struct {
	ComputingIDs []string `json:"computing_ids"`
}

// detailRequest mirrors one resource detail object on the wire.
type detailRequest struct {
	ComputingID         string `json:"computing_id"`
	PowerConsumption    int    `json:"power_consumption"`
	CPUPerformance      int    `json:"cpu_performance"`
	CPUAvailable        int    `json:"cpu_available"`
	GPUModel            string `json:"gpu_model"`
	GPUPerformance      int    `json:"gpu_performance"`
	GPUMemory           int    `json:"gpu_memory"`
	GPUAvailable        string `json:"gpu_available"`
	NetworkDelay        int    `json:"network_delay"`
	NetworkPerformance  int    `json:"network_performance"`
	NetworkIsIXP        bool   `json:"network_is_ixp"`
	NetworkIPs          string `json:"network_ips"`
	NetworkAvailable    string `json:"network_available"`
	NetworkIPsAvailable string `json:"network_ips_available"`
	NetworkPorts        string `json:"network_ports"`
	Price               int    `json:"price"`
}

// registerResourcesRequest is the body of POST /v1/computing_resources.
type registerResourcesRequest struct {
	ComputingResources []detailRequest `json:"computing_resources"`
}

// eventRequest is the body of the three event capture routes.
type eventRequest struct {
	Source            string                 `json:"source"`
	SessionIdentifier string                 `json:"session_identifier"`
	Data              map[string]interface{} `json:"data"`
}

// itemOutcome is the wire form of one per-item registration outcome.
type itemOutcome struct {
	Identifier string `json:"identifier"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// batchOutcome is the wire form of a whole registration result.
type batchOutcome struct {
	Items    []itemOutcome `json:"items"`
	Created  int           `json:"created"`
	Existing int           `json:"existing"`
	Failed   int           `json:"failed"`
}

func toBatchOutcome(result *ingest.Result) batchOutcome {
	out := batchOutcome{
		Items:    make([]itemOutcome, len(result.Items)),
		Created:  result.Created,
		Existing: result.Existing,
		Failed:   result.Failed,
	}
	for i, item := range result.Items {
		out.Items[i] = itemOutcome{
			Identifier: item.Identifier,
			Status:     string(item.Status),
		}
		if item.Err != nil {
			out.Items[i].Error = item.Err.Error()
		}
	}
	return out
}

// RegisterComputingIDs handles POST /v1/computing_ids.
func (h *Handlers) RegisterComputingIDs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
		return
	}

	var req registerIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.pipeline.RegisterIdentifiers(r.Context(), req.ComputingIDs)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	h.stats.RecordIdentifiers(result.Created, result.Existing, result.Failed)

	writeOK(w, toBatchOutcome(result))
}

// RegisterComputingResources handles POST /v1/computing_resources.
func (h *Handlers) RegisterComputingResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
		return
	}

	var req registerResourcesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	inputs := make([]ingest.DetailInput, len(req.ComputingResources))
	for i, d := range req.ComputingResources {
		inputs[i] = ingest.DetailInput{
			Identifier:          d.ComputingID,
			PowerConsumption:    d.PowerConsumption,
			CPUPerformance:      d.CPUPerformance,
			CPUAvailable:        d.CPUAvailable,
			GPUModel:            d.GPUModel,
			GPUPerformance:      d.GPUPerformance,
			GPUMemory:           d.GPUMemory,
			GPUAvailable:        d.GPUAvailable,
			NetworkDelay:        d.NetworkDelay,
			NetworkPerformance:  d.NetworkPerformance,
			NetworkIsIXP:        d.NetworkIsIXP,
			NetworkIPs:          d.NetworkIPs,
			NetworkAvailable:    d.NetworkAvailable,
			NetworkIPsAvailable: d.NetworkIPsAvailable,
			NetworkPorts:        d.NetworkPorts,
			Price:               d.Price,
		}
	}

	result, err := h.pipeline.RegisterDetails(r.Context(), inputs)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	h.stats.RecordDetails(result.Created, result.Failed)

	writeOK(w, toBatchOutcome(result))
}

// eventHandler builds the handler for one event capture route.
func (h *Handlers) eventHandler(kind catalog.EventKind) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
			return
		}

		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
			return
		}

		id, err := h.events.Append(r.Context(), kind, req.Source, req.SessionIdentifier, req.Data)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		h.stats.RecordEvent(string(kind))

		writeOK(w, map[string]interface{}{"event_id": id})
	})
}

// Stats handles GET /v1/stats.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
		return
	}
	writeOK(w, h.stats.Snapshot())
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeCatalogError maps a taxonomy error onto HTTP status and envelope code.
func writeCatalogError(w http.ResponseWriter, err error) {
	var ce *cperrors.CatalogError
	if !errors.As(err, &ce) {
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}

	switch {
	case ce.Category == cperrors.ErrCategoryValidation || ce.Category == cperrors.ErrCategoryDecode:
		writeError(w, http.StatusBadRequest, CodeBadRequest, ce.Message)
	case ce.Code == cperrors.CodeUnresolvedReference:
		writeError(w, http.StatusBadRequest, CodeNotFound, ce.Message)
	case ce.Retryable:
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, ce.Message)
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, ce.Message)
	}
}
