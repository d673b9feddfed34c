package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/vigil/internal/di"
)

// SystemHandlers serves health, resource and database statistics endpoints.
type SystemHandlers struct {
	container *di.Container
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates the system handlers.
func NewSystemHandlers(log zerolog.Logger, container *di.Container) *SystemHandlers {
	return &SystemHandlers{
		container: container,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleHealth reports liveness plus per-database health.
// GET /health and GET /api/system/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	databases := make(map[string]string)
	healthy := true

	for name, db := range h.container.Databases() {
		if err := db.HealthCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Database health check failed")
			databases[name] = "unhealthy"
			healthy = false
			continue
		}
		databases[name] = "ok"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	h.writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"databases":      databases,
	})
}

// HandleStats reports process resource usage, store occupancy and mirror
// throughput.
// GET /api/system/stats
func (h *SystemHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramPercent := h.systemUsage()
	written, failed, dropped := h.container.MirrorWorker.Stats()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cpu_percent": cpuAvg,
		"ram_percent": ramPercent,
		"store":       h.container.HistoryStore.Counts(),
		"mirror": map[string]int64{
			"written": written,
			"failed":  failed,
			"dropped": dropped,
		},
	})
}

// HandleDatabaseStats reports on-disk size and page statistics per database.
// GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	for name, db := range h.container.Databases() {
		dbStats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to collect database stats")
			stats[name] = map[string]string{"error": err.Error()}
			continue
		}
		stats[name] = dbStats
	}

	if counts, err := h.container.MirrorRepo.RowCounts(); err == nil {
		stats["mirror_rows"] = counts
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// HandleListBackups lists cloud backup archives.
// GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.container.CloudBackupService == nil {
		h.writeError(w, http.StatusServiceUnavailable, "cloud backup is not configured")
		return
	}

	backups, err := h.container.CloudBackupService.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		h.writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}

	h.writeJSON(w, http.StatusOK, backups)
}

// HandleTriggerBackup runs a cloud backup immediately.
// POST /api/system/backups
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.container.CloudBackupService == nil {
		h.writeError(w, http.StatusServiceUnavailable, "cloud backup is not configured")
		return
	}

	if err := h.container.CloudBackupService.CreateAndUploadBackup(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		h.writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// systemUsage samples CPU and RAM usage. A short sampling interval keeps
// the endpoint responsive.
func (h *SystemHandlers) systemUsage() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode error response")
	}
}
