package reconrun

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/enersystems/es-inventory-hub/internal/services"
)

// Workflow runs one dated reconciliation as a single activity. The activity
// is idempotent (classification replaces whole partitions), so retrying after
// a partial failure is safe.
func Workflow(ctx workflow.Context, req RunRequest) (*services.RunSummary, error) {
	if req.Date == "" {
		req.Date = workflow.Now(ctx).UTC().Format("2006-01-02")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    2 * time.Minute,
			MaximumAttempts:    3,
		},
	})

	var summary services.RunSummary
	if err := workflow.ExecuteActivity(ctx, ActivityRunDaily, req).Get(ctx, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
