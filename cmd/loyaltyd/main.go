// Command loyaltyd serves the loyalty ledger HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/loyalty_layer/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication()
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	runErr := application.Run(ctx)
	if runErr != nil {
		log.Printf("server error: %v", runErr)
	}

	if err := application.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
