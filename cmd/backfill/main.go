// Command backfill fills in message metadata for stored events that were
// written before it could be extracted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/ses-tracking/internal/backfill"
	"github.com/ignite/ses-tracking/internal/bootstrap"
	"github.com/ignite/ses-tracking/internal/repository/postgres"
)

func main() {
	var (
		configPath = flag.String("config", bootstrap.DefaultConfigPath, "path to config file")
		pageSize   = flag.Int("page-size", backfill.DefaultPageSize, "events loaded per page")
	)
	flag.Parse()

	cfg, err := bootstrap.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.OpenDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	res, err := backfill.New(postgres.NewEventRepo(db), *pageSize).Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backfill failed after %d events: %v\n", res.Scanned, err)
		os.Exit(1)
	}
	fmt.Printf("Successfully backfilled ID (%d scanned, %d updated, %d unparsable)\n",
		res.Scanned, res.Updated, res.Unparsable)
}
