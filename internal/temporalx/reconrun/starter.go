package reconrun

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
)

// StartDaily kicks a one-off reconciliation for the date. The workflow ID
// embeds the date, so duplicate triggers for an in-flight date are rejected
// by the server rather than racing.
func StartDaily(ctx context.Context, tc temporalsdkclient.Client, taskQueue, date string) (temporalsdkclient.WorkflowRun, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client not configured")
	}
	return tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        WorkflowID(date),
		TaskQueue: taskQueue,
	}, WorkflowName, RunRequest{Date: date})
}

// EnsureCron registers the recurring daily run. Re-running at startup is
// safe: an already-started cron workflow is left alone.
func EnsureCron(ctx context.Context, tc temporalsdkclient.Client, log *logger.Logger, taskQueue, cronSpec string) error {
	if tc == nil || cronSpec == "" {
		return nil
	}
	_, err := tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:           "daily-reconcile-cron",
		TaskQueue:    taskQueue,
		CronSchedule: cronSpec,
	}, WorkflowName, RunRequest{})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return nil
		}
		return fmt.Errorf("ensure reconcile cron: %w", err)
	}
	if log != nil {
		log.Info("Reconcile cron registered", "schedule", cronSpec, "task_queue", taskQueue)
	}
	return nil
}
