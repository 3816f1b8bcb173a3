package reconrun

const (
	WorkflowName     = "daily_reconcile"
	ActivityRunDaily = "reconcile_run_daily"
)

type RunRequest struct {
	// Date is the reconciliation date (YYYY-MM-DD); empty means today.
	Date string `json:"date"`
}

// WorkflowID returns the dedup ID for a date. Temporal rejects a second
// start with the same ID while the first run is open, so a date can never
// reconcile twice concurrently.
func WorkflowID(date string) string {
	return "daily-reconcile-" + date
}
