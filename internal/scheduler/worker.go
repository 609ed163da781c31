package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/hibiken/asynq"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// Worker runs the asynq server processing job tasks and the periodic task
// manager that enqueues them on schedule.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	manager  *asynq.PeriodicTaskManager
	registry *Registry
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, registry *Registry, log *logger.Logger) (*Worker, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	for _, name := range registry.Names() {
		mux.HandleFunc(name, func(ctx context.Context, task *asynq.Task) error {
			return registry.Run(ctx, task.Type())
		})
	}

	schedules, err := LoadSchedules(cfg.GetJobScheduleFile())
	if err != nil {
		return nil, err
	}

	manager, err := asynq.NewPeriodicTaskManager(asynq.PeriodicTaskManagerOpts{
		RedisConnOpt:               opt,
		PeriodicTaskConfigProvider: staticScheduleProvider{schedules: schedules, queue: queue},
		SyncInterval:               time.Minute,
	})
	if err != nil {
		return nil, err
	}

	return &Worker{
		server:   server,
		mux:      mux,
		manager:  manager,
		registry: registry,
		log:      log,
	}, nil
}

// Run blocks processing tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.manager.Start(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		w.log.Info("shutdown signal received, stopping worker")
		w.manager.Shutdown()
		w.server.Shutdown()
	}()

	return w.server.Run(w.mux)
}

type staticScheduleProvider struct {
	schedules map[string]string
	queue     string
}

func (p staticScheduleProvider) GetConfigs() ([]*asynq.PeriodicTaskConfig, error) {
	names := make([]string, 0, len(p.schedules))
	for name := range p.schedules {
		names = append(names, name)
	}
	sort.Strings(names)

	configs := make([]*asynq.PeriodicTaskConfig, 0, len(names))
	for _, name := range names {
		configs = append(configs, &asynq.PeriodicTaskConfig{
			Cronspec: p.schedules[name],
			Task:     asynq.NewTask(name, nil),
			Opts:     []asynq.Option{asynq.Queue(p.queue)},
		})
	}
	return configs, nil
}
