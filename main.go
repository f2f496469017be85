package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessenaser/duobreak/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := app.New().Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
