package camunda

import (
	"context"
	"encoding/json"

	apperrors "context-engine/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the subset of the application logger the job helpers need.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// CompleteJob completes job with output serialized as process variables.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, log Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to encode job output", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		ThrowJobError(ctx, client, job, err, log)
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to send complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	log.Info("job completed", map[string]interface{}{"jobKey": job.Key})
}

// ThrowJobError raises err as a BPMN error so the process model decides what
// happens next. Jobs are never failed with retries; stages do not retry.
func ThrowJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error, log Logger) {
	stdErr := apperrors.Normalize(err)
	bpmnErr := apperrors.ConvertToBPMNError(stdErr)

	log.Error("job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        bpmnErr.Code,
		"details":          stdErr.Details,
		"errorCategory":    apperrors.GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if vars, encErr := json.Marshal(bpmnErr.ToErrorVariables()); encErr == nil {
		if withVars, varErr := cmd.VariablesFromString(string(vars)); varErr == nil {
			_, _ = withVars.Send(ctx)
			return
		}
	}
	_, _ = cmd.Send(ctx)
}
