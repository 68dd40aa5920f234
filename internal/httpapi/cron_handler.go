package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/navalmess/api/internal/notify"
	"github.com/navalmess/api/internal/store"
)

// BackupFunc hands the database path to the external backup collaborator.
// It is best-effort: failures are reported but carry no further handling
// in the core.
type BackupFunc func(dbPath string) error

// CronHandler serves the token-authorised cron endpoints.
type CronHandler struct {
	scheduler *notify.Scheduler
	store     *store.Store
	dbPath    string
	backup    BackupFunc
}

func NewCronHandler(scheduler *notify.Scheduler, st *store.Store, dbPath string, backup BackupFunc) *CronHandler {
	return &CronHandler{scheduler: scheduler, store: st, dbPath: dbPath, backup: backup}
}

// Backup triggers the daily backup hand-off.
func (h *CronHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "no_backup_collaborator"})
		return
	}
	if err := h.backup(h.dbPath); err != nil {
		log.Error().Err(err).Msg("backup hand-off failed")
		respondError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "backup_started"})
}

// Avisos runs one deadline-warning scan outside the periodic schedule.
func (h *CronHandler) Avisos(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Scan(r.Context(), time.Now()); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "scan_complete"})
}

// HealthHandler serves the public liveness probe.
type HealthHandler struct {
	store *store.Store
}

func NewHealthHandler(st *store.Store) *HealthHandler {
	return &HealthHandler{store: st}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	latency, err := h.store.Health(r.Context())
	status := "ok"
	db := "up"
	code := http.StatusOK
	if err != nil {
		status, db = "degraded", "down"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{
		"status":     status,
		"ts":         time.Now().Format(time.RFC3339),
		"db":         db,
		"latency_ms": latency.Milliseconds(),
	})
}
