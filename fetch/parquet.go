package fetch

import (
	"context"
	"fmt"

	"github.com/dnldd/zone/shared"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

// ParquetDataConfig represents the parquet bucket data source configuration.
type ParquetDataConfig struct {
	// FilePath is the filepath to the parquet bucket rows.
	FilePath string
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// ParquetData represents per bar bucket data stored as parquet rows.
type ParquetData struct {
	cfg  *ParquetDataConfig
	bars []shared.BarBuckets
}

// Ensure parquet data implements the BucketProvider interface.
var _ shared.BucketProvider = (*ParquetData)(nil)

// NewParquetData initializes a new parquet bucket data source.
func NewParquetData(cfg *ParquetDataConfig) (*ParquetData, error) {
	rows, err := parquet.ReadFile[shared.BucketRow](cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("reading parquet rows from file with path '%s': %w", cfg.FilePath, err)
	}

	bars, err := shared.GroupBucketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("grouping parquet rows: %w", err)
	}

	cfg.Logger.Info().Msgf("loaded %d bars from %d parquet rows in %s", len(bars), len(rows), cfg.FilePath)

	return &ParquetData{
		cfg:  cfg,
		bars: bars,
	}, nil
}

// WriteParquetData stores the provided bars as parquet rows at the provided file path.
func WriteParquetData(filepath string, bars []shared.BarBuckets) error {
	rows := make([]shared.BucketRow, 0, len(bars))
	for idx := range bars {
		for i := range bars[idx] {
			rows = append(rows, shared.NewBucketRow(int64(idx), &bars[idx][i]))
		}
	}

	err := parquet.WriteFile(filepath, rows)
	if err != nil {
		return fmt.Errorf("writing parquet rows to file with path '%s': %w", filepath, err)
	}

	return nil
}

// FetchBars returns the price buckets of every loaded bar.
func (p *ParquetData) FetchBars(ctx context.Context) ([]shared.BarBuckets, error) {
	bars := make([]shared.BarBuckets, len(p.bars))
	copy(bars, p.bars)

	return bars, nil
}
