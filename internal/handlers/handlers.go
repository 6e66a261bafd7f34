package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"footage-indexer/internal/database"
	"footage-indexer/internal/scanner"
	"footage-indexer/internal/scheduler"
)

// Folder bundles one watched folder's store and scanner for the API.
type Folder struct {
	Path    string
	Store   *database.FolderStore
	Scanner *scanner.Scanner
}

// Handlers serves the operator API: health, concurrency control,
// catalog stats, search, and manual sync/scan triggers.
type Handlers struct {
	catalog   *database.CatalogStore
	sched     *scheduler.Scheduler
	folders   map[string]*Folder
	startTime time.Time

	// syncMu serializes manual sync triggers; concurrent syncs of the
	// same folder would race on the cursor.
	syncMu chan struct{}
}

// New creates the API handlers.
func New(catalog *database.CatalogStore, sched *scheduler.Scheduler, folders []*Folder) *Handlers {
	m := make(map[string]*Folder, len(folders))
	for _, f := range folders {
		m[f.Path] = f
	}
	h := &Handlers{
		catalog:   catalog,
		sched:     sched,
		folders:   m,
		startTime: time.Now(),
		syncMu:    make(chan struct{}, 1),
	}
	h.syncMu <- struct{}{}
	return h
}

// RegisterRoutes attaches every API route to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", h.Version).Methods(http.MethodGet)
	api.HandleFunc("/concurrency", h.GetConcurrency).Methods(http.MethodGet)
	api.HandleFunc("/concurrency", h.UpdateConcurrency).Methods(http.MethodPut)
	api.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	api.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	api.HandleFunc("/sync", h.TriggerSync).Methods(http.MethodPost)
	api.HandleFunc("/scan", h.TriggerScan).Methods(http.MethodPost)
}
