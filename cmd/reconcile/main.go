package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/enersystems/es-inventory-hub/internal/app"
	types "github.com/enersystems/es-inventory-hub/internal/domain"
)

// One-shot reconciliation for a date, for backfills and local runs.
//
//	reconcile -date 2025-11-03
func main() {
	dateFlag := flag.String("date", "", "reconciliation date (YYYY-MM-DD), default today")
	flag.Parse()

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	date := types.DateOnly(time.Now())
	if *dateFlag != "" {
		parsed, err := time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			a.Log.Error("Invalid -date", "value", *dateFlag, "error", err)
			a.Close()
			os.Exit(2)
		}
		date = parsed
	}

	summary, err := a.Services.Reconcile.RunDaily(context.Background(), date)
	if err != nil {
		a.Log.Error("Reconciliation failed", "date", date.Format("2006-01-02"), "error", err)
		a.Close()
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}
