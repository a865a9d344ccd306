package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/codrive/internal/client/cli"
	"github.com/dmitrijs2005/codrive/internal/client/config"
	"github.com/dmitrijs2005/codrive/internal/telemetry"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	shutdown, err := telemetry.Setup(ctx, "codrive-cli", cfg.OTelEndpoint)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
