// cmd/relay-replay/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"intake-crm/internal/common/config"
	"intake-crm/internal/common/database"
	"intake-crm/internal/common/logger"
	"intake-crm/internal/common/observability"
	"intake-crm/internal/intake"
	"intake-crm/internal/models"
	"intake-crm/internal/relay"
)

func main() {
	oneCmd := flag.NewFlagSet("one", flag.ExitOnError)
	allCmd := flag.NewFlagSet("all", flag.ExitOnError)

	// One command flags
	id := oneCmd.String("id", "", "Storage id or applicationId of the record to relay")

	// All command flags
	since := allCmd.String("since", "", "Only relay records submitted at or after this RFC 3339 time")
	dryRun := allCmd.Bool("dry-run", false, "List the records that would be relayed without sending them")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var run func(ctx context.Context, service *intake.Service, client *relay.Client, url string) error

	switch os.Args[1] {
	case "one":
		oneCmd.Parse(os.Args[2:])
		if *id == "" {
			fmt.Println("Error: id is required for one.")
			oneCmd.Usage()
			os.Exit(1)
		}
		run = func(ctx context.Context, service *intake.Service, client *relay.Client, url string) error {
			rec, err := service.Get(ctx, *id)
			if err != nil {
				return err
			}
			if !deliver(ctx, client, *rec, url) {
				return fmt.Errorf("relay of %s failed", rec.ApplicationID)
			}
			return nil
		}

	case "all":
		allCmd.Parse(os.Args[2:])
		var cutoff time.Time
		if *since != "" {
			t, err := time.Parse(time.RFC3339, *since)
			if err != nil {
				fmt.Printf("Error: invalid -since value: %v\n", err)
				os.Exit(1)
			}
			cutoff = t
		}
		run = func(ctx context.Context, service *intake.Service, client *relay.Client, url string) error {
			records, err := service.List(ctx)
			if err != nil {
				return err
			}
			failed := 0
			sent := 0
			for _, rec := range records {
				if rec.SubmittedAt.Before(cutoff) {
					continue
				}
				if *dryRun {
					fmt.Printf("would relay %s (submitted %s)\n", rec.ApplicationID, rec.SubmittedAt.Format(time.RFC3339))
					continue
				}
				sent++
				if !deliver(ctx, client, rec, url) {
					failed++
				}
			}
			fmt.Printf("Relayed %d records, %d failed\n", sent-failed, failed)
			if failed > 0 {
				return fmt.Errorf("%d relays failed", failed)
			}
			return nil
		}

	case "help":
		help()
		return

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		help()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(config.ComponentReplay); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, "console", "relay-replay")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fmt.Printf("Error connecting to PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	service := intake.NewService(&intake.Config{FrontendBaseURL: cfg.Intake.FrontendBaseURL}, intake.NewPostgresStore(pg.DB), log)
	client := relay.NewClient(config.GetDuration(cfg.Intake.RelayTimeout), cfg.Intake.CRMWebhookToken, observability.NewNoop())

	if err := run(context.Background(), service, client, cfg.Intake.CRMWebhookURL); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func deliver(ctx context.Context, client *relay.Client, rec models.ApplicationRecord, url string) bool {
	result := client.Relay(ctx, rec, url)
	if result.Success {
		fmt.Printf("relayed %s: %d\n", rec.ApplicationID, result.StatusCode)
		return true
	}
	fmt.Printf("failed %s: status=%d error=%s\n", rec.ApplicationID, result.StatusCode, result.Error)
	return false
}

func help() {
	fmt.Println("Usage: relay-replay <command> [flags]")
	fmt.Println()
	fmt.Println("Re-sends intake records to the CRM webhook. The CRM ingests each")
	fmt.Println("applicationId once, so replaying delivered records is a no-op.")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  one    Relay a single record (-id)")
	fmt.Println("  all    Relay every record (-since, -dry-run)")
	fmt.Println("  help   Show this help message")
}
