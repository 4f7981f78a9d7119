package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophid/internal/app"
	"github.com/dmitrijs2005/gophid/internal/buildinfo"
	"github.com/dmitrijs2005/gophid/internal/config"
	"github.com/dmitrijs2005/gophid/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stderr)

	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)
	summary, err := app.NewApp(cfg, logger).Run(ctx)
	if err != nil {
		logger.Error(ctx, "run failed", "error", err)
		os.Exit(1)
	}
	if summary.Failed > 0 || summary.NotProcessed > 0 {
		os.Exit(2)
	}
}
