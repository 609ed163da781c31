package scheduler

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"
)

// JobTrigger enqueues a one-off run of a named job.
type JobTrigger interface {
	EnqueueJob(ctx context.Context, name string) error
}

// JobsModule exposes the batch jobs on the admin surface: listing the known
// schedules and triggering a run outside its schedule.
type JobsModule struct {
	trigger JobTrigger
	log     *logger.Logger
}

func NewJobsModule(trigger JobTrigger, log *logger.Logger) *JobsModule {
	return &JobsModule{trigger: trigger, log: log}
}

// Name returns the module identifier.
func (m *JobsModule) Name() string {
	return "jobs"
}

// RegisterRoutes mounts the admin job routes.
func (m *JobsModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	rg := ctx.Admin.Group("/jobs")
	rg.GET("", m.list)
	rg.POST("/:name/run", m.run)
}

type jobInfo struct {
	Name     string `json:"name"`
	Cronspec string `json:"cronspec"`
}

func (m *JobsModule) list(c *gin.Context) {
	jobs := make([]jobInfo, 0, len(defaultSchedules))
	for name, spec := range defaultSchedules {
		jobs = append(jobs, jobInfo{Name: name, Cronspec: spec})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })

	httpkit.OK(c, gin.H{"jobs": jobs})
}

func (m *JobsModule) run(c *gin.Context) {
	name := c.Param("name")
	if _, ok := defaultSchedules[name]; !ok {
		httpkit.Error(c, http.StatusNotFound, "unknown job", name)
		return
	}
	if m.trigger == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "job queue not configured", nil)
		return
	}

	if err := m.trigger.EnqueueJob(c.Request.Context(), name); err != nil {
		m.log.Error("failed to enqueue job", "job", name, "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to enqueue job", nil)
		return
	}

	m.log.Info("job enqueued", "job", name)
	httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "queued", "job": name})
}
