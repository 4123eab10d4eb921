package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/export"
	"salonbook/internal/google"
	"salonbook/internal/models"
	"salonbook/internal/service"
	"salonbook/internal/worker"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		replace    = flag.Bool("replace", false, "replace stored hours and blackouts instead of upserting")
		clearAppts = flag.Bool("clear-appointments", false, "delete every stored appointment")
		exportPath = flag.String("export", "", "write all appointments to this .xlsx file (directory gets a generated name)")
		resync     = flag.Bool("resync", false, "rewrite the Google Sheets appointments sheet from the store")
		requeue    = flag.Bool("requeue-failed", false, "move failed sheet sync tasks back to pending")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := service.NewCalendarService(db, &logger).Seed(ctx, cfg.Hours, cfg.Blackouts, *replace); err != nil {
		return fmt.Errorf("seed calendar: %w", err)
	}
	fmt.Printf("calendar: hours=%d blackouts=%d replace=%t\n", len(cfg.Hours), len(cfg.Blackouts), *replace)

	if *exportPath != "" {
		if err := exportAll(ctx, db, *exportPath, cfg.Scheduling.CapacityPerSlot); err != nil {
			return err
		}
	}

	if *resync || *requeue {
		if err := syncSheets(ctx, cfg, db, *resync, *requeue, &logger); err != nil {
			return err
		}
	}

	if *clearAppts {
		n, err := db.ClearAppointments(ctx)
		if err != nil {
			return fmt.Errorf("clear appointments: %w", err)
		}
		fmt.Printf("appointments: deleted=%d\n", n)
	}
	return nil
}

func syncSheets(ctx context.Context, cfg *config.Config, db *database.DB, resync, requeue bool, logger *zerolog.Logger) error {
	if !cfg.Google.SheetsEnabled() {
		return fmt.Errorf("google sheets is not configured")
	}
	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.AppointmentsSpreadSheetID)
	if err != nil {
		return fmt.Errorf("connect sheets: %w", err)
	}
	sheetsWorker := worker.NewSheetsWorker(db, sheetsService, nil, worker.DefaultRetryPolicy(), logger)

	if requeue {
		n, err := sheetsWorker.RequeueFailed(ctx)
		if err != nil {
			return fmt.Errorf("requeue failed tasks: %w", err)
		}
		fmt.Printf("sync: requeued=%d\n", n)
	}
	if resync {
		if err := sheetsWorker.Resync(ctx); err != nil {
			return err
		}
		fmt.Println("sync: sheet rewritten")
	}
	return nil
}

func exportAll(ctx context.Context, db *database.DB, path string, capacity int) error {
	appts, err := db.ListAppointments(ctx, models.AppointmentFilter{})
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, export.FileName(export.Period{}))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := export.WriteAppointments(f, export.Period{}, appts, capacity); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	fmt.Printf("export: %s appointments=%d\n", path, len(appts))
	return nil
}
