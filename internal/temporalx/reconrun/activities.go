package reconrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"

	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
	"github.com/enersystems/es-inventory-hub/internal/services"
)

type Activities struct {
	Log       *logger.Logger
	Reconcile services.ReconcileService
}

func (a *Activities) RunDaily(ctx context.Context, req RunRequest) (*services.RunSummary, error) {
	if a == nil || a.Reconcile == nil {
		return nil, fmt.Errorf("reconrun: activity not configured")
	}

	date := types.DateOnly(time.Now())
	if raw := strings.TrimSpace(req.Date); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("reconrun: invalid date %q: %w", raw, err)
		}
		date = parsed
	}

	stopHB := a.startHeartbeat(ctx)
	defer stopHB()

	summary, err := a.Reconcile.RunDaily(ctx, date)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (a *Activities) startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
