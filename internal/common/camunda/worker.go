// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// StageWorker is one open Zeebe job worker.
type StageWorker struct {
	worker   worker.JobWorker
	taskType string
}

// OpenWorker subscribes handler to taskType on the broker.
func OpenWorker(
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	timeout time.Duration,
	handler worker.JobHandler,
	log Logger,
) *StageWorker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Name("context-engine").
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": maxJobsActive,
		"timeout":       timeout.String(),
	})

	return &StageWorker{worker: jobWorker, taskType: taskType}
}

// TaskType returns the job type this worker is subscribed to.
func (w *StageWorker) TaskType() string {
	return w.taskType
}

// Close stops polling and waits for in-flight jobs.
func (w *StageWorker) Close() {
	w.worker.Close()
	w.worker.AwaitClose()
}
