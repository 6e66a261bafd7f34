package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"footage-indexer/internal/database"
	"footage-indexer/internal/logging"
	"footage-indexer/internal/resources"
	"footage-indexer/internal/scanner"
	"footage-indexer/internal/scheduler"
	"footage-indexer/internal/syncer"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

// ConcurrencyResponse reports the scheduler's permit gate and mode.
type ConcurrencyResponse struct {
	Mode        string                    `json:"mode"`
	Concurrency scheduler.ConcurrencyInfo `json:"concurrency"`
}

// GetConcurrency returns the current mode and permit counts.
func (h *Handlers) GetConcurrency(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, ConcurrencyResponse{
		Mode:        string(h.sched.Mode()),
		Concurrency: h.sched.ConcurrencyInfo(),
	})
}

// UpdateConcurrency switches the scheduler's mode. Body: {"mode": "..."}.
func (h *Handlers) UpdateConcurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	mode := resources.ParseMode(req.Mode)
	if string(mode) != req.Mode {
		writeJSONError(w, "unknown mode: "+req.Mode, http.StatusBadRequest)
		return
	}
	h.sched.UpdateMode(mode)
	logging.Info("Concurrency mode set to %s via API", mode)
	writeJSON(w, ConcurrencyResponse{
		Mode:        string(mode),
		Concurrency: h.sched.ConcurrencyInfo(),
	})
}

// StatsResponse aggregates catalog totals with per-folder scanner state.
type StatsResponse struct {
	Catalog database.CatalogStats `json:"catalog"`
	Folders []scanner.Stats       `json:"folders"`
}

// Stats returns catalog totals and the state of every watched folder.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	catalogStats, err := h.catalog.Stats(r.Context())
	if err != nil {
		logging.Error("Stats query failed: %v", err)
		writeJSONError(w, "failed to read stats", http.StatusInternalServerError)
		return
	}
	resp := StatsResponse{Catalog: catalogStats, Folders: make([]scanner.Stats, 0, len(h.folders))}
	for _, f := range h.folders {
		if f.Scanner != nil {
			resp.Folders = append(resp.Folders, f.Scanner.Stats())
		}
	}
	writeJSON(w, resp)
}

// SearchResponse wraps full-text search hits.
type SearchResponse struct {
	Query string               `json:"query"`
	Hits  []database.SearchHit `json:"hits"`
}

// Search runs a full-text query over clip metadata.
// Query params: q (required), limit (optional, capped).
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSONError(w, "missing query parameter: q", http.StatusBadRequest)
		return
	}
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, "invalid limit: "+raw, http.StatusBadRequest)
			return
		}
		limit = min(n, maxSearchLimit)
	}
	hits, err := h.catalog.Search(r.Context(), query, limit)
	if err != nil {
		logging.Error("Search failed for %q: %v", query, err)
		writeJSONError(w, "search failed", http.StatusInternalServerError)
		return
	}
	if hits == nil {
		hits = []database.SearchHit{}
	}
	writeJSON(w, SearchResponse{Query: query, Hits: hits})
}

// SyncResponse reports the outcome of a manual sync.
type SyncResponse struct {
	Folder string        `json:"folder"`
	Force  bool          `json:"force"`
	Result syncer.Result `json:"result"`
}

// TriggerSync runs a catalog sync for one folder.
// Body: {"folder": "...", "force": bool}. Only one manual sync runs at
// a time; a second request gets 409 instead of queueing.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Folder string `json:"folder"`
		Force  bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	f, ok := h.folders[req.Folder]
	if !ok {
		writeJSONError(w, "unknown folder: "+req.Folder, http.StatusNotFound)
		return
	}

	select {
	case <-h.syncMu:
	default:
		writeJSONError(w, "a sync is already running", http.StatusConflict)
		return
	}
	defer func() { h.syncMu <- struct{}{} }()

	res, err := syncer.Sync(r.Context(), f.Path, f.Store, h.catalog, req.Force)
	if err != nil {
		logging.Error("Manual sync of %s failed: %v", f.Path, err)
		writeJSONError(w, "sync failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, SyncResponse{Folder: f.Path, Force: req.Force, Result: res})
}

// TriggerScan kicks off a filesystem scan for one folder.
// Body: {"folder": "..."}.
func (h *Handlers) TriggerScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Folder string `json:"folder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	f, ok := h.folders[req.Folder]
	if !ok {
		writeJSONError(w, "unknown folder: "+req.Folder, http.StatusNotFound)
		return
	}
	if f.Scanner == nil {
		writeJSONError(w, "folder has no scanner", http.StatusConflict)
		return
	}
	if err := f.Scanner.Scan(r.Context()); err != nil {
		logging.Error("Manual scan of %s failed: %v", f.Path, err)
		writeJSONError(w, "scan failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, f.Scanner.Stats())
}
