package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aristath/stockfolio/internal/database"
	"github.com/aristath/stockfolio/internal/httputil"
	"github.com/aristath/stockfolio/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// JobRunner reports and triggers scheduled jobs
type JobRunner interface {
	Status() []scheduler.JobStatus
	RunNow(job scheduler.Job) error
}

// VersionSource reports the current store version
type VersionSource interface {
	Version() uint64
}

// ClientCounter reports connected stream clients
type ClientCounter interface {
	Count() int
}

// DBInfo describes one database file
type DBInfo struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Profile      string `json:"profile"`
	SizeBytes    int64  `json:"size_bytes"`
	WALSizeBytes int64  `json:"wal_size_bytes"`
	Healthy      bool   `json:"healthy"`
	Error        string `json:"error,omitempty"`
}

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	Status        string                `json:"status"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	StoreVersion  uint64                `json:"store_version"`
	StreamClients int                   `json:"stream_clients"`
	CPUPercent    float64               `json:"cpu_percent"`
	MemoryPercent float64               `json:"memory_percent"`
	Databases     []DBInfo              `json:"databases"`
	Jobs          []scheduler.JobStatus `json:"jobs"`
}

// SystemHandlers serves the monitoring and job trigger endpoints
type SystemHandlers struct {
	databases []*database.DB
	jobs      JobRunner
	store     VersionSource
	clients   ClientCounter
	startedAt time.Time

	mu       sync.RWMutex
	triggers map[string]scheduler.Job

	// overridable in tests
	systemStats func() (float64, float64)
	log         zerolog.Logger
}

// NewSystemHandlers creates system handlers. clients may be nil.
func NewSystemHandlers(
	databases []*database.DB,
	jobs JobRunner,
	store VersionSource,
	clients ClientCounter,
	log zerolog.Logger,
) *SystemHandlers {
	h := &SystemHandlers{
		databases: databases,
		jobs:      jobs,
		store:     store,
		clients:   clients,
		startedAt: time.Now(),
		triggers:  make(map[string]scheduler.Job),
		log:       log.With().Str("component", "system_handlers").Logger(),
	}
	h.systemStats = h.getSystemStats
	return h
}

// RegisterJob makes a job triggerable via POST /api/system/jobs/{name}/run
func (h *SystemHandlers) RegisterJob(job scheduler.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.triggers[job.Name()] = job
}

// RegisterRoutes registers the system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/jobs", h.HandleJobsStatus)
		r.Post("/jobs/{name}/run", h.HandleRunJob)
	})
}

// HandleSystemStatus returns host, database and job status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := h.systemStats()

	resp := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		StoreVersion:  h.store.Version(),
		CPUPercent:    cpuPct,
		MemoryPercent: memPct,
		Databases:     h.databaseInfo(r.Context()),
		Jobs:          h.jobs.Status(),
	}
	if h.clients != nil {
		resp.StreamClients = h.clients.Count()
	}
	for _, db := range resp.Databases {
		if !db.Healthy {
			resp.Status = "degraded"
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp, h.log)
}

// HandleJobsStatus returns the status of every scheduled job
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.jobs.Status(), h.log)
}

// HandleRunJob runs a registered job immediately
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.RLock()
	job, ok := h.triggers[name]
	h.mu.RUnlock()
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "job not found: "+name, h.log)
		return
	}

	if err := h.jobs.RunNow(job); err != nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "error",
			"job":     name,
			"message": err.Error(),
		}, h.log)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"job":    name,
	}, h.log)
}

func (h *SystemHandlers) databaseInfo(ctx context.Context) []DBInfo {
	out := make([]DBInfo, 0, len(h.databases))
	for _, db := range h.databases {
		info := DBInfo{
			Name:    db.Name(),
			Path:    db.Path(),
			Profile: string(db.Profile()),
			Healthy: true,
		}

		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := db.QuickCheck(checkCtx); err != nil {
			info.Healthy = false
			info.Error = err.Error()
		}
		cancel()

		if stats, err := db.GetStats(); err == nil {
			info.SizeBytes = stats.SizeBytes
			info.WALSizeBytes = stats.WALSizeBytes
		} else {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
		}

		out = append(out, info)
	}
	return out
}

// getSystemStats samples CPU over a short interval so the request stays fast
func (h *SystemHandlers) getSystemStats() (float64, float64) {
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
