package workflows

import (
	"errors"
	"strings"
	"time"

	"magegraph/internal/activities"
	"magegraph/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetConvertStatus = "GetConvertStatus"

// WorkflowID is the Temporal workflow ID used for a conversion run.
func WorkflowID(runID string) string {
	return "convert-" + sanitizeID(runID)
}

func StudyConvertWorkflow(ctx workflow.Context, input StudyConvertInput) (string, error) {
	status := ConvertStatus{
		RunID:        input.RunID,
		DocumentPath: input.DocumentPath,
		CurrentStep:  "init",
		Status:       models.RunProcessing,
		Steps:        map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetConvertStatus, func() (ConvertStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: durationOrDefault(input.ActivityTimeoutSeconds, 300),
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	markRun := func(runStatus, reason string) error {
		if input.SkipPersist {
			return nil
		}
		return workflow.ExecuteActivity(ctx, "UpdateRunStatusActivity", activities.UpdateRunStatusInput{
			RunID:      input.RunID,
			Status:     runStatus,
			FailReason: reason,
			NodeCount:  status.NodeCount,
			EdgeCount:  status.EdgeCount,
		}).Get(ctx, nil)
	}
	if err := markRun(models.RunProcessing, ""); err != nil {
		logger.Warn("run status update failed", "run_id", input.RunID, "status", models.RunProcessing, "err", err)
	}

	// fail records an infrastructure failure on the run and hands err back to
	// Temporal so the workflow still closes as failed.
	fail := func(err error) (string, error) {
		status.Status = models.RunFailed
		status.FailReason = failReason(err)
		status.Steps[status.CurrentStep] = "failed"
		logger.Error("study conversion failed", "run_id", input.RunID, "step", status.CurrentStep, "err", err)
		if mErr := markRun(models.RunFailed, status.FailReason); mErr != nil {
			logger.Warn("run status update failed", "run_id", input.RunID, "status", models.RunFailed, "err", mErr)
		}
		return "", err
	}

	status.CurrentStep = "compute_document_id"
	status.Steps[status.CurrentStep] = "processing"
	var idOut activities.ComputeDocumentIDOutput
	if err := workflow.ExecuteActivity(ctx, "ComputeDocumentIDActivity", activities.ComputeDocumentIDInput{DocumentPath: input.DocumentPath}).Get(ctx, &idOut); err != nil {
		return fail(err)
	}
	status.DocumentID = idOut.DocumentID
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "build_study"
	status.Steps[status.CurrentStep] = "processing"
	var built activities.BuildStudyOutput
	if err := workflow.ExecuteActivity(ctx, "BuildStudyActivity", activities.BuildStudyInput{DocumentPath: input.DocumentPath}).Get(ctx, &built); err != nil {
		if isDocumentError(err) {
			status.Status = models.RunFailed
			status.FailReason = failReason(err)
			status.Steps[status.CurrentStep] = "failed"
			logger.Warn("study conversion rejected", "run_id", input.RunID, "reason", status.FailReason)
			_ = markRun(models.RunFailed, status.FailReason)
			return status.Status, nil
		}
		return fail(err)
	}
	status.NodeCount = built.NodeCount
	status.EdgeCount = built.EdgeCount
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "write_artifacts"
	status.Steps[status.CurrentStep] = "processing"
	var artifacts activities.WriteStudyArtifactsOutput
	if err := workflow.ExecuteActivity(ctx, "WriteStudyArtifactsActivity", activities.WriteStudyArtifactsInput{
		DocumentID: idOut.DocumentID,
		Study:      built.Study,
		Formats:    input.Formats,
	}).Get(ctx, &artifacts); err != nil {
		return fail(err)
	}
	status.Artifacts = artifacts.Paths
	status.Steps[status.CurrentStep] = "done"

	if !input.SkipPersist {
		status.CurrentStep = "persist_study"
		status.Steps[status.CurrentStep] = "processing"
		if err := workflow.ExecuteActivity(ctx, "PersistStudyActivity", activities.PersistStudyInput{
			RunID:      input.RunID,
			DocumentID: idOut.DocumentID,
			Study:      built.Study,
		}).Get(ctx, nil); err != nil {
			return fail(err)
		}
		status.Steps[status.CurrentStep] = "done"
	}

	status.CurrentStep = "mark_completed"
	status.Steps[status.CurrentStep] = "processing"
	if err := markRun(models.RunCompleted, ""); err != nil {
		return fail(err)
	}
	status.Steps[status.CurrentStep] = "done"
	status.CurrentStep = "done"
	status.Status = models.RunCompleted
	return status.Status, nil
}

// isDocumentError reports whether err came from a document that cannot be
// converted no matter how often it is retried.
func isDocumentError(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case activities.ErrTypeStructure, activities.ErrTypeParse:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "invalid document structure")
}

func failReason(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
