package main

import (
	"context"
	"fmt"
	"os"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/bootstrap"
	"gitlab.com/timkado/api/daisi-helpdesk-service/pkg/contextkeys"
)

func main() {
	ctx := context.Background()
	ctx = context.WithValue(ctx, contextkeys.RequestIDKey, "app-main")

	// Initialize the application using the Wire-generated injector.
	app, cleanup, err := bootstrap.InitializeApp(ctx)
	if err != nil {
		// A very basic log if bootstrap fails, as the main logger isn't available.
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	// Defer the cleanup function to ensure resources are released on exit.
	defer cleanup()

	// The Run method handles server start and graceful shutdown.
	if err := app.Run(ctx); err != nil {
		fmt.Printf("Application run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Application exited gracefully.")
}
