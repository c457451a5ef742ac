// Package explorer serves an explorer session over a JSON HTTP API.
package explorer

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"toolatlas/internal/adapters/exports"
	"toolatlas/internal/core"
	"toolatlas/internal/selection"
	"toolatlas/pkg/catalogapi"
)

// BasePath is the route prefix every endpoint lives under.
const BasePath = "/api/v1/explorer"

const emptyBodySentinel = "EOF"

// Handler routes explorer requests. Exports is optional; without it the
// export endpoints answer 404.
type Handler struct {
	Explorer *core.Explorer
	Exports  exports.Scheduler
	Logger   *slog.Logger
}

// NewHandler constructs an explorer HTTP handler.
func NewHandler(e *core.Explorer) *Handler {
	return &Handler{Explorer: e, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Explorer == nil {
		writeError(w, http.StatusInternalServerError, "explorer not configured")
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	if path != BasePath && !strings.HasPrefix(path, BasePath+"/") {
		http.NotFound(w, r)
		return
	}
	route := strings.TrimPrefix(strings.TrimPrefix(path, BasePath), "/")

	switch {
	case route == "":
		h.only(w, r, http.MethodGet, h.handleSnapshot)
	case route == "refresh":
		h.only(w, r, http.MethodPost, h.handleRefresh)
	case route == "filters":
		h.only(w, r, http.MethodPut, h.handleSetFilters)
	case route == "filters/toggle":
		h.only(w, r, http.MethodPost, h.handleToggleFilter)
	case route == "search":
		h.only(w, r, http.MethodPost, h.handleSearch)
	case route == "years":
		h.only(w, r, http.MethodPut, h.handleYears)
	case route == "pick":
		switch r.Method {
		case http.MethodPost:
			h.handlePick(w, r)
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, map[string]any{"snapshot": h.Explorer.ClearPick()})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case route == "drill":
		h.only(w, r, http.MethodGet, h.handleDrill)
	case route == "options":
		h.only(w, r, http.MethodGet, h.handleOptions)
	case route == "organizations":
		h.only(w, r, http.MethodGet, h.handleOrganizations)
	case route == "exports" || strings.HasPrefix(route, "exports/"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, strings.TrimPrefix(strings.TrimPrefix(route, "exports"), "/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) only(w http.ResponseWriter, r *http.Request, method string, fn http.HandlerFunc) {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	fn(w, r)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"snapshot": h.Explorer.Snapshot()})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Explorer.Refresh(r.Context())
	h.writeLoad(w, r, snap, err)
}

type filtersRequest struct {
	Filters map[string][]string `json:"filters"`
}

func (h *Handler) handleSetFilters(w http.ResponseWriter, r *http.Request) {
	var req filtersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != emptyBodySentinel {
		writeError(w, http.StatusBadRequest, "invalid filters payload")
		return
	}
	filters := catalogapi.Filters{}
	for raw, values := range req.Filters {
		field, err := catalogapi.ParseFilterField(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filters[field] = append(filters[field], values...)
	}
	snap, err := h.Explorer.SetFilters(r.Context(), filters)
	h.writeLoad(w, r, snap, err)
}

type toggleRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *Handler) handleToggleFilter(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid toggle payload")
		return
	}
	field, err := catalogapi.ParseFilterField(req.Field)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Value) == "" {
		writeError(w, http.StatusBadRequest, "filter value required")
		return
	}
	snap, err := h.Explorer.ToggleFilter(r.Context(), field, strings.TrimSpace(req.Value))
	h.writeLoad(w, r, snap, err)
}

type searchRequest struct {
	Text      string `json:"text"`
	Immediate bool   `json:"immediate"`
}

// handleSearch applies text at once when immediate is set. Otherwise the
// text is debounced and the response is 202 with the pending state.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != emptyBodySentinel {
		writeError(w, http.StatusBadRequest, "invalid search payload")
		return
	}
	if !req.Immediate {
		writeJSON(w, http.StatusAccepted, map[string]any{"snapshot": h.Explorer.TypeSearch(req.Text)})
		return
	}
	snap, err := h.Explorer.SubmitSearch(r.Context(), req.Text)
	h.writeLoad(w, r, snap, err)
}

type yearsRequest struct {
	Min json.RawMessage `json:"min"`
	Max json.RawMessage `json:"max"`
}

func (h *Handler) handleYears(w http.ResponseWriter, r *http.Request) {
	var req yearsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != emptyBodySentinel {
		writeError(w, http.StatusBadRequest, "invalid years payload")
		return
	}
	snap, err := h.Explorer.SetYearRange(r.Context(), boundText(req.Min), boundText(req.Max))
	h.writeLoad(w, r, snap, err)
}

// boundText accepts a JSON number or string; anything else means no bound.
func boundText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

type pickRequest struct {
	Dimension string `json:"dimension"`
	Value     string `json:"value"`
}

type pickResponse struct {
	Outcome  string        `json:"outcome"`
	Snapshot core.Snapshot `json:"snapshot"`
}

// handlePick answers 200 even when the pick is rejected; the outcome field
// tells the client what happened.
func (h *Handler) handlePick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid pick payload")
		return
	}
	dimension := catalogapi.Dimension(strings.ToLower(strings.TrimSpace(req.Dimension)))
	outcome, snap := h.Explorer.TogglePick(dimension, req.Value)
	if outcome == selection.OutcomeRejected {
		h.Logger.DebugContext(r.Context(), "pick rejected", "dimension", req.Dimension, "value", req.Value)
	}
	writeJSON(w, http.StatusOK, pickResponse{Outcome: outcome.String(), Snapshot: snap})
}

func (h *Handler) handleDrill(w http.ResponseWriter, _ *http.Request) {
	expr, target, err := h.Explorer.Drill()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filter": expr, "target": target})
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.Explorer.Options(r.Context())
	switch {
	case errors.Is(err, core.ErrNoOptionsSource):
		writeError(w, http.StatusNotImplemented, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]any{"options": opts})
	}
}

func (h *Handler) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	out, err := h.Explorer.PreviewOrganizations(r.Context(), q.Get("search"), page, pageSize)
	switch {
	case errors.Is(err, core.ErrNoOrganizationSource):
		writeError(w, http.StatusNotImplemented, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]any{"organizations": out})
	}
}

type exportRequest struct {
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requested_by"`
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, id string) {
	if id != "" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		record, ok := h.Exports.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "export not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"export": record})
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != emptyBodySentinel {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	formats := make([]exports.Format, 0, len(req.Formats))
	for _, raw := range req.Formats {
		f, err := exports.ParseFormat(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		formats = append(formats, f)
	}
	record, err := h.Exports.Enqueue(r.Context(), exports.Input{
		Snapshot:    h.Explorer.Snapshot(),
		Formats:     formats,
		RequestedBy: req.RequestedBy,
	})
	switch {
	case errors.Is(err, exports.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
	}
}

// writeLoad reports a dataset transition. Failures still carry the snapshot,
// which keeps the last good collection.
func (h *Handler) writeLoad(w http.ResponseWriter, r *http.Request, snap core.Snapshot, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"snapshot": snap})
	case errors.Is(err, core.ErrStaleResult):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "snapshot": snap})
	default:
		h.Logger.WarnContext(r.Context(), "explorer dataset request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "snapshot": snap})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
