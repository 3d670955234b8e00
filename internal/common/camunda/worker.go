package camunda

import (
	"context"

	"inventory-assistant/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler completes or fails the job itself; a returned error is only logged.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

// HandlerFunc adapts a plain function to JobHandler.
type HandlerFunc func(client worker.JobClient, job entities.Job) error

func (f HandlerFunc) Handle(client worker.JobClient, job entities.Job) error {
	return f(client, job)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// Options tune the job worker; zero values keep the client defaults.
type Options struct {
	MaxJobsActive int
	Concurrency   int
}

func NewWorker(client zbc.Client, taskType string, opts Options, handler JobHandler, log logger.Logger) *CamundaWorker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	builder := client.NewJobWorker().
		JobType(taskType).
		Handler(wrap(handler, log))
	if opts.MaxJobsActive > 0 {
		builder = builder.MaxJobsActive(opts.MaxJobsActive)
	}
	if opts.Concurrency > 0 {
		builder = builder.Concurrency(opts.Concurrency)
	}

	return &CamundaWorker{
		worker:   builder.Open(),
		logger:   log,
		taskType: taskType,
	}
}

func wrap(handler JobHandler, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		if err := handler.Handle(client, job); err != nil {
			log.Error("handler returned error", map[string]interface{}{
				"jobKey": job.Key,
				"error":  err.Error(),
			})
		}
	}
}

func (w *CamundaWorker) Start() {
	w.logger.Info("worker started", nil)
}

// Stop closes the job stream and waits for in-flight jobs.
func (w *CamundaWorker) Stop(ctx context.Context) {
	w.logger.Info("stopping worker", nil)
	done := make(chan struct{})
	go func() {
		w.worker.Close()
		w.worker.AwaitClose()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("worker stop timed out", nil)
	}
}
