package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/dnldd/zone/service"
	"github.com/dnldd/zone/shared"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Printf("loading config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handleTermination(ctx, cancel)

	if cfg.Ingest {
		_, err := service.Ingest(ctx, &service.IngestConfig{
			DataFilepath: cfg.DataFilepath,
			TradeStep:    cfg.TradeStep,
			DBEndpoint:   cfg.DBEndpoint,
			DBUser:       cfg.DBUser,
			DBPass:       cfg.DBPass,
		})
		if err != nil {
			log.Printf("ingesting bucket data: %v", err)
			os.Exit(1)
		}

		return
	}

	border, err := shared.ParseBorderPolicy(cfg.Border)
	if err != nil {
		log.Printf("parsing border policy: %v", err)
		os.Exit(1)
	}

	zone, err := service.NewZone(ctx, &service.ZoneConfig{
		Size:         cfg.Size,
		BorderPolicy: border,
		DataFilepath: cfg.DataFilepath,
		TradeStep:    cfg.TradeStep,
		DBEndpoint:   cfg.DBEndpoint,
		DBUser:       cfg.DBUser,
		DBPass:       cfg.DBPass,
		Workers:      cfg.Workers,
		Interval:     time.Duration(cfg.Interval) * time.Second,
	})
	if err != nil {
		log.Printf("creating zone service: %v", err)
		os.Exit(1)
	}

	err = zone.Run(ctx)
	if err != nil {
		log.Printf("running zone service: %v", err)
		os.Exit(1)
	}
}
