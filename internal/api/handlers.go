package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/star/kinematics1d/internal/cache"
	"github.com/star/kinematics1d/internal/history"
	"github.com/star/kinematics1d/internal/httputil"
	"github.com/star/kinematics1d/internal/kinematics"
	"github.com/star/kinematics1d/internal/problems"
	"github.com/star/kinematics1d/internal/render"
	"github.com/star/kinematics1d/internal/solver"
	"github.com/star/kinematics1d/internal/stream"
	"github.com/star/kinematics1d/internal/trajectory"
)

const (
	maxBodyBytes      = 64 << 10
	maxBatchBodyBytes = 1 << 20
	defaultListLimit  = 20
	maxListLimit      = 500
)

type handlers struct {
	solver     *solver.Service
	cache      *cache.ResolutionCache
	history    *history.Store
	maxSamples int
	about      About
	logger     *slog.Logger
}

// resolveRequest is the JSON body of POST /api/v1/resolve and one element of
// a JSON batch. A null value marks the quantity unknown.
type resolveRequest struct {
	Label     string              `json:"label,omitempty"`
	Values    map[string]*float64 `json:"values"`
	Precision *int                `json:"precision,omitempty"`
}

type resolveResponse struct {
	kinematics.Resolution
	ID     string `json:"id,omitempty"`
	Cached bool   `json:"cached"`
}

// resolveQuery handles GET /api/v1/resolve?vi=10&vf=30&t=4&precision=3&format=json
func (h *handlers) resolveQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state, err := httputil.StateFromQuery(q, "precision", "format")
	if err != nil {
		httputil.WriteInputError(w, err, 0)
		return
	}
	precision, err := httputil.IntParam(q, "precision")
	if err != nil {
		httputil.WriteInputError(w, err, 0)
		return
	}
	h.resolve(w, r, state, precision)
}

// resolveBody handles POST /api/v1/resolve with a JSON body.
func (h *handlers) resolveBody(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorBody{Error: "invalid JSON body", Kind: "bad_request"})
		return
	}
	state, err := httputil.StateFromValues(req.Values)
	if err != nil {
		httputil.WriteInputError(w, err, 0)
		return
	}
	h.resolve(w, r, state, req.Precision)
}

func (h *handlers) resolve(w http.ResponseWriter, r *http.Request, state kinematics.MotionState, precision *int) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", "json", "latex", "markdown":
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorBody{
			Error: fmt.Sprintf("unknown format %q, want json, latex or markdown", format),
			Kind:  "bad_parameter",
		})
		return
	}

	out, err := h.solver.Resolve(r.Context(), solver.Request{Source: "api", State: state, Precision: precision})
	if err != nil {
		httputil.WriteInputError(w, err, 0)
		return
	}
	res := *out.Resolution

	switch format {
	case "latex":
		w.Header().Set("Content-Type", "text/x-latex; charset=utf-8")
		io.WriteString(w, render.AlignedBlock(res.Formulas()))
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, render.MarkdownTable(res.Solution, res.Known))
		io.WriteString(w, "\n$$\n"+render.AlignedBlock(res.Formulas())+"$$\n")
	default:
		httputil.WriteJSON(w, http.StatusOK, resolveResponse{Resolution: res, ID: out.RecordID, Cached: out.Cached})
	}
}

type batchItem struct {
	Label      string                 `json:"label,omitempty"`
	Resolution *kinematics.Resolution `json:"resolution,omitempty"`
	ID         string                 `json:"id,omitempty"`
	Cached     bool                   `json:"cached,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Kind       string                 `json:"kind,omitempty"`
}

type batchResponse struct {
	OK      int         `json:"ok"`
	Failed  int         `json:"failed"`
	Results []batchItem `json:"results"`
}

// resolveBatch handles POST /api/v1/resolve/batch. The body is either a JSON
// array of resolve requests or, with Content-Type text/plain, a problem set.
func (h *handlers) resolveBatch(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)

	reqs, err := h.batchRequests(r, body)
	if err != nil {
		var bad *badItemError
		if errors.As(err, &bad) {
			httputil.WriteInputError(w, err, 0)
			return
		}
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorBody{Error: err.Error(), Kind: "bad_request"})
		return
	}

	outcomes, ok, failed, err := h.solver.ResolveBatch(r.Context(), reqs)
	if errors.Is(err, solver.ErrBatchTooLarge) {
		httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.ErrorBody{Error: err.Error(), Kind: "batch_too_large"})
		return
	}
	if err != nil {
		h.logger.Error("batch failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := batchResponse{OK: ok, Failed: failed, Results: make([]batchItem, len(outcomes))}
	for i, out := range outcomes {
		item := batchItem{Label: out.Label, Resolution: out.Resolution, ID: out.RecordID, Cached: out.Cached}
		if out.Err != nil {
			item.Kind = kinematics.Kind(out.Err)
			item.Error = out.Err.Error()
			if !kinematics.IsInputError(out.Err) {
				item.Error = "internal error"
			}
		}
		resp.Results[i] = item
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// badItemError marks a batch element whose values do not parse.
type badItemError struct {
	index int
	err   error
}

func (e *badItemError) Error() string { return fmt.Sprintf("item %d: %v", e.index, e.err) }
func (e *badItemError) Unwrap() error { return e.err }

func (h *handlers) batchRequests(r *http.Request, body io.Reader) ([]solver.Request, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		set, err := problems.Parse(body, h.logger)
		if err != nil {
			return nil, err
		}
		reqs := make([]solver.Request, len(set))
		for i, p := range set {
			reqs[i] = solver.Request{Label: p.Name(), Source: "batch", State: p.State, Precision: p.Precision}
		}
		return reqs, nil
	}

	var items []resolveRequest
	if err := json.NewDecoder(body).Decode(&items); err != nil {
		return nil, errors.New("body must be a JSON array of {\"values\":{...}} objects or a text/plain problem set")
	}
	reqs := make([]solver.Request, len(items))
	for i, item := range items {
		state, err := httputil.StateFromValues(item.Values)
		if err != nil {
			return nil, &badItemError{index: i, err: err}
		}
		label := item.Label
		if label == "" {
			label = strconv.Itoa(i)
		}
		reqs[i] = solver.Request{Label: label, Source: "batch", State: state, Precision: item.Precision}
	}
	return reqs, nil
}

type combinationRow struct {
	Combination kinematics.Combination `json:"combination"`
	Known       kinematics.QuantitySet `json:"known"`
	Derives     []kinematics.Quantity  `json:"derives"`
	Formulas    []string               `json:"formulas"`
}

// combinations handles GET /api/v1/combinations.
func (h *handlers) combinations(w http.ResponseWriter, r *http.Request) {
	all := kinematics.Combinations()
	rows := make([]combinationRow, len(all))
	for i, c := range all {
		rows[i] = combinationRow{
			Combination: c,
			Known:       c.Known(),
			Derives:     c.Derives(),
			Formulas:    c.Formulas(),
		}
	}
	httputil.WriteJSON(w, http.StatusOK, rows)
}

type trajectoryResponse struct {
	Resolution kinematics.Resolution `json:"resolution"`
	Step       float64               `json:"step"`
	Points     []trajectory.Point    `json:"points"`
}

// trajectory handles GET /api/v1/trajectory?vi=0&a=2&t=10&step=0.5
func (h *handlers) trajectory(w http.ResponseWriter, r *http.Request) {
	plan, err := stream.PlanTrajectory(r, h.solver, "api", h.maxSamples)
	if err != nil {
		httputil.WriteInputError(w, err, h.maxSamples)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trajectoryResponse{
		Resolution: plan.Resolution,
		Step:       plan.Step,
		Points:     plan.Points,
	})
}

// listResolutions handles GET /api/v1/resolutions?last=20
func (h *handlers) listResolutions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("last"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorBody{
				Error: fmt.Sprintf("invalid last parameter, must be 1-%d", maxListLimit),
				Kind:  "bad_parameter",
			})
			return
		}
		limit = n
	}

	recs, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("history list failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, recs)
}

// getResolution handles GET /api/v1/resolutions/{id}
func (h *handlers) getResolution(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	rec, err := h.history.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "resolution not found")
		return
	}
	if err != nil {
		h.logger.Error("history get failed", "id", id, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// aboutInfo handles GET /api/v1/about.
func (h *handlers) aboutInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.about)
}

type statsResponse struct {
	Cache          *cache.Stats `json:"cache,omitempty"`
	HistoryEnabled bool         `json:"history_enabled"`
}

// stats handles GET /api/v1/stats.
func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{HistoryEnabled: h.history != nil}
	if h.cache != nil {
		s := h.cache.Stats()
		resp.Cache = &s
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
