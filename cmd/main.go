package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/yungbote/minutes-backend/internal/app"
	"github.com/yungbote/minutes-backend/internal/platform/shutdown"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		a.Log.Error("Server exited", "error", err)
		a.Close()
		os.Exit(1)
	}
}
