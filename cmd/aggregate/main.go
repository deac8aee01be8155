// Command aggregate computes daily statistics for one or more days. It is
// meant to run from a scheduler shortly after midnight.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/ses-tracking/internal/aggregate"
	"github.com/ignite/ses-tracking/internal/archive"
	"github.com/ignite/ses-tracking/internal/bootstrap"
	"github.com/ignite/ses-tracking/internal/domain"
	"github.com/ignite/ses-tracking/internal/pkg/distlock"
	"github.com/ignite/ses-tracking/internal/pkg/logger"
	"github.com/ignite/ses-tracking/internal/repository/postgres"
)

func main() {
	var (
		configPath = flag.String("config", bootstrap.DefaultConfigPath, "path to config file")
		dateFlag   = flag.String("date", "", "last date to aggregate (YYYY-MM-DD, default yesterday)")
		days       = flag.Int("days", 1, "number of days to aggregate, ending at --date")
		force      = flag.Bool("force", false, "recompute days that already have statistics")
	)
	flag.Parse()

	cfg, err := bootstrap.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	loc, err := cfg.Aggregation.Location()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	end, err := endDate(*dateFlag, time.Now(), loc)
	if err != nil {
		log.Fatalf("Invalid --date: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.OpenDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := bootstrap.OpenRedis(ctx, cfg.Redis.URL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	agg := aggregate.New(postgres.NewEventRepo(db), postgres.NewStatsRepo(db), loc)
	batch := aggregate.NewBatch(agg)
	batch.SetLocker(distlock.NewFactory(redisClient, db, cfg.Aggregation.LockTTL()).For)

	if cfg.Archive.Enabled {
		archiver, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			logger.Warn("archive disabled", "error", err)
		} else {
			batch.SetArchiver(archiver)
		}
	}

	dates := aggregate.Dates(end, *days)
	fmt.Printf("Processing stats from %s to %s\n",
		dates[0].Format(domain.DateLayout), dates[len(dates)-1].Format(domain.DateLayout))

	if err := batch.Run(ctx, end, *days, *force, printResult); err != nil {
		fmt.Fprintf(os.Stderr, "Aggregation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Successfully aggregated daily stats")
}

// endDate parses value as YYYY-MM-DD, or returns yesterday in loc when
// value is empty.
func endDate(value string, now time.Time, loc *time.Location) (time.Time, error) {
	if value != "" {
		return time.Parse(domain.DateLayout, value)
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d-1, 0, 0, 0, 0, time.UTC), nil
}

func printResult(res *aggregate.Result) {
	date := res.Date.Format(domain.DateLayout)
	switch res.Status {
	case aggregate.StatusCreated, aggregate.StatusUpdated:
		verb := "Created"
		if res.Status == aggregate.StatusUpdated {
			verb = "Updated"
		}
		fmt.Printf("%s stats for %s: %d sends, %d deliveries, %d bounces\n",
			verb, date, res.Stats.TotalSends, res.Stats.TotalDeliveries, res.Stats.TotalBounces)
	case aggregate.StatusSkipped:
		fmt.Printf("Stats for %s already exist (use --force to regenerate)\n", date)
	case aggregate.StatusLocked:
		fmt.Printf("Stats for %s are being aggregated by another run, skipped\n", date)
	case aggregate.StatusFailed:
		fmt.Fprintf(os.Stderr, "Failed to aggregate stats for %s: %v\n", date, res.Err)
	}
}
