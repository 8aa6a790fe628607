package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dnldd/zone/database"
	"github.com/dnldd/zone/shared"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IngestConfig represents the configuration struct for bucket data ingestion.
type IngestConfig struct {
	// DataFilepath is the filepath to the bucket data (.json or .parquet).
	DataFilepath string
	// TradeStep is the bucket size used to aggregate bars recorded as trades.
	TradeStep float64
	// DBEndpoint is the bucket database endpoint.
	DBEndpoint string
	// DBUser is the bucket database user.
	DBUser string
	// DBPass is the bucket database user pass.
	DBPass string
}

// Validate asserts the config sane inputs.
func (cfg *IngestConfig) Validate() error {
	var errs error

	if cfg.DataFilepath == "" {
		errs = errors.Join(errs, fmt.Errorf("ingestion requires a bucket data filepath"))
	}
	if cfg.DBEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("ingestion requires a database endpoint"))
	}
	if cfg.TradeStep < 0 || math.IsNaN(cfg.TradeStep) {
		errs = errors.Join(errs, fmt.Errorf("trade step cannot be negative"))
	}

	return errs
}

// ingestBars stores every bar of the provided source. It returns the number of stored bars.
func ingestBars(ctx context.Context, source shared.BucketProvider, storer database.BucketStorer, logger *zerolog.Logger) (int, error) {
	bars, err := source.FetchBars(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching bars: %w", err)
	}

	var buckets int
	for idx := range bars {
		if err := ctx.Err(); err != nil {
			return idx, err
		}

		err := storer.PersistBuckets(ctx, int64(idx), bars[idx])
		if err != nil {
			return idx, fmt.Errorf("persisting bar %d: %w", idx, err)
		}

		buckets += len(bars[idx])
	}

	logger.Info().Msgf("ingested %d bars (%d buckets)", len(bars), buckets)

	return len(bars), nil
}

// Ingest loads the configured bucket data file and stores every bar in the configured database.
func Ingest(ctx context.Context, cfg *IngestConfig) (int, error) {
	err := cfg.Validate()
	if err != nil {
		return 0, fmt.Errorf("validating ingest config: %w", err)
	}

	logger := log.With().Str("service", "ingest").Logger()

	source, err := newFileProvider(cfg.DataFilepath, cfg.TradeStep, &logger)
	if err != nil {
		return 0, err
	}

	dbLogger := logger.With().Str("component", "database").Logger()
	db, err := database.NewDatabase(ctx, &database.DatabaseConfig{
		Endpoint: cfg.DBEndpoint,
		User:     cfg.DBUser,
		Pass:     cfg.DBPass,
		Logger:   &dbLogger,
	})
	if err != nil {
		return 0, fmt.Errorf("creating database: %w", err)
	}

	return ingestBars(ctx, source, db, &logger)
}
