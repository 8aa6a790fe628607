package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dnldd/zone/database"
	"github.com/dnldd/zone/fetch"
	"github.com/dnldd/zone/indicator"
	"github.com/dnldd/zone/shared"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// ZoneConfig represents the configuration struct for the accumulation zone service.
type ZoneConfig struct {
	// Size is the percentage of a bar's volume the accumulation zone must cover.
	Size float64
	// BorderPolicy selects the bucket prices used as the zone borders.
	BorderPolicy shared.BorderPolicy
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
	// Workers is the number of concurrent bar workers.
	Workers int
	// Interval is the recomputation interval, zero computes once.
	Interval time.Duration
	// Output receives the computed zones as csv, defaults to stdout.
	Output io.Writer
	// Provider overrides the configured bucket source.
	Provider shared.BucketProvider
}

// Validate asserts the config sane inputs.
func (cfg *ZoneConfig) Validate() error {
	var errs error

	if !(cfg.Size > 0 && cfg.Size <= 100) {
		errs = errors.Join(errs, fmt.Errorf("zone size must be greater than 0 and at most 100, got %v", cfg.Size))
	}
	if cfg.Provider == nil {
		switch {
		case cfg.DataFilepath == "" && cfg.DBEndpoint == "":
			errs = errors.Join(errs, fmt.Errorf("no bucket data filepath or database endpoint provided"))
		case cfg.DataFilepath != "" && cfg.DBEndpoint != "":
			errs = errors.Join(errs, fmt.Errorf("only one of bucket data filepath or database endpoint can be provided"))
		}
	}
	if cfg.Workers < 0 {
		errs = errors.Join(errs, fmt.Errorf("workers cannot be negative"))
	}
	if cfg.Interval < 0 {
		errs = errors.Join(errs, fmt.Errorf("interval cannot be negative"))
	}
	if cfg.TradeStep < 0 || math.IsNaN(cfg.TradeStep) {
		errs = errors.Join(errs, fmt.Errorf("trade step cannot be negative"))
	}

	return errs
}

// Zone represents an accumulation zone computing service.
type Zone struct {
	cfg         *ZoneConfig
	accumulator indicator.AccumulationConfig
	provider    shared.BucketProvider
	logger      *zerolog.Logger
}

// newProvider creates the bucket provider for the provided configuration.
func newProvider(ctx context.Context, cfg *ZoneConfig, logger *zerolog.Logger) (shared.BucketProvider, error) {
	switch {
	case cfg.Provider != nil:
		return cfg.Provider, nil

	case cfg.DBEndpoint != "":
		dbLogger := logger.With().Str("component", "database").Logger()
		db, err := database.NewDatabase(ctx, &database.DatabaseConfig{
			Endpoint: cfg.DBEndpoint,
			User:     cfg.DBUser,
			Pass:     cfg.DBPass,
			Logger:   &dbLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating database: %w", err)
		}

		return db, nil
	}

	return newFileProvider(cfg.DataFilepath, cfg.TradeStep, logger)
}

// newFileProvider creates the bucket provider for the provided data file, selected by extension.
func newFileProvider(path string, tradeStep float64, logger *zerolog.Logger) (shared.BucketProvider, error) {
	dataLogger := logger.With().Str("component", "historicdata").Logger()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		historicData, err := fetch.NewHistoricData(&fetch.HistoricDataConfig{
			FilePath:  path,
			TradeStep: tradeStep,
			Logger:    &dataLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating historic data: %w", err)
		}

		return historicData, nil

	case ".parquet":
		parquetData, err := fetch.NewParquetData(&fetch.ParquetDataConfig{
			FilePath: path,
			Logger:   &dataLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating parquet data: %w", err)
		}

		return parquetData, nil

	default:
		return nil, fmt.Errorf("unsupported bucket data format '%s'", ext)
	}
}

// NewZone initializes a new accumulation zone service.
func NewZone(ctx context.Context, cfg *ZoneConfig) (*Zone, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating zone config: %w", err)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "zone").Logger()

	accumulator := indicator.AccumulationConfig{
		TargetPercent: cfg.Size,
		BorderPolicy:  cfg.BorderPolicy,
	}
	err = accumulator.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	provider, err := newProvider(ctx, cfg, &logger)
	if err != nil {
		return nil, err
	}

	return &Zone{
		cfg:         cfg,
		accumulator: accumulator,
		provider:    provider,
		logger:      &logger,
	}, nil
}

// Compute fetches the bucket data and computes the accumulation zone of every bar.
func (z *Zone) Compute(ctx context.Context) ([]shared.ValueArea, error) {
	runLogger := z.logger.With().Str("run", uuid.New().String()).Logger()
	genLogger := runLogger.With().Str("component", "valuearea").Logger()

	generator, err := indicator.NewValueAreaGenerator(&z.accumulator, &genLogger)
	if err != nil {
		return nil, fmt.Errorf("creating value area generator: %w", err)
	}

	bars, err := z.provider.FetchBars(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching bars: %w", err)
	}

	start := time.Now()
	areas, err := generator.ComputeConcurrent(ctx, bars, z.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("computing accumulation zones: %w", err)
	}

	runLogger.Info().Msgf("computed %d accumulation zones (size %.2f%%, %s borders) in %s",
		len(areas), z.accumulator.TargetPercent, z.accumulator.BorderPolicy.String(), time.Since(start))

	return areas, nil
}

// WriteZones writes the provided accumulation zones as csv rows of bar, upper and lower border.
func WriteZones(w io.Writer, areas []shared.ValueArea) error {
	cw := csv.NewWriter(w)

	err := cw.Write([]string{"bar", "upper", "lower"})
	if err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	upper := shared.UpperBorders(areas)
	lower := shared.LowerBorders(areas)
	for idx := range areas {
		err := cw.Write([]string{
			strconv.Itoa(idx),
			strconv.FormatFloat(upper[idx], 'f', -1, 64),
			strconv.FormatFloat(lower[idx], 'f', -1, 64),
		})
		if err != nil {
			return fmt.Errorf("writing csv row %d: %w", idx, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// computeAndWrite computes the accumulation zones and writes them to the configured output.
func (z *Zone) computeAndWrite(ctx context.Context) error {
	areas, err := z.Compute(ctx)
	if err != nil {
		return err
	}

	return WriteZones(z.cfg.Output, areas)
}

// Run handles the lifecycle processes of the accumulation zone service.
func (z *Zone) Run(ctx context.Context) error {
	if z.cfg.Interval == 0 {
		return z.computeAndWrite(ctx)
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	_, err := scheduler.Every(z.cfg.Interval).Do(func() {
		err := z.computeAndWrite(ctx)
		if err != nil && ctx.Err() == nil {
			z.logger.Error().Msgf("scheduled accumulation zone computation: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling accumulation zone computation: %w", err)
	}

	z.logger.Info().Msgf("computing accumulation zones every %s", z.cfg.Interval)
	scheduler.StartAsync()

	<-ctx.Done()
	scheduler.Stop()

	return nil
}
