package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := injector.InitializeApp(injector.ConfigPath(*configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing:", err)
		os.Exit(1)
	}

	err = app.Run(ctx)
	if err != nil {
		app.Logger.Error("Factory simulator stopped with error", log.Error(err))
	}
	cleanup()
	if err != nil {
		os.Exit(1)
	}
}
