package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sicilystay/stayservice/internal/config"
	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/export"
	stlog "github.com/sicilystay/stayservice/internal/log"
	"github.com/sicilystay/stayservice/internal/repository"
	"github.com/sicilystay/stayservice/internal/repository/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("STAY_CONFIG"), "Path to YAML config")
	out := flag.String("out", "-", "Output file, - for stdout")
	from := flag.String("from", "", "Earliest check-in day (YYYY-MM-DD or DD/MM/YYYY)")
	to := flag.String("to", "", "Latest check-in day (YYYY-MM-DD or DD/MM/YYYY)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := stlog.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	filter, err := buildFilter(*from, *to)
	if err != nil {
		log.Fatalf("Invalid filter: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbCfg := postgres.DefaultConfig()
	dbCfg.DSN = cfg.Database.GetDSN()
	store, err := postgres.NewStore(ctx, dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	bookings, err := store.List(ctx, filter)
	if err != nil {
		log.Fatalf("Failed to list bookings: %v", err)
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		w = f
	}

	if err := export.WriteCSV(w, bookings); err != nil {
		log.Fatalf("Failed to write CSV: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d bookings\n", len(bookings))
}

func buildFilter(from, to string) (repository.Filter, error) {
	var f repository.Filter
	if from != "" {
		d, err := dates.Parse(from)
		if err != nil {
			return f, err
		}
		f.CheckInFrom = d
	}
	if to != "" {
		d, err := dates.Parse(to)
		if err != nil {
			return f, err
		}
		f.CheckInTo = d
	}
	return f, nil
}
