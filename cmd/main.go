package main

import (
	"fmt"
	"os"

	"github.com/enersystems/es-inventory-hub/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	a.Log.Info("API server starting", "addr", a.Cfg.HTTPAddr)
	if err := a.Run(); err != nil {
		a.Log.Error("API server exited", "error", err)
		a.Close()
		os.Exit(1)
	}
}
