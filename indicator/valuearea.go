package indicator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/zone/shared"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

const (
	// maxPercent is the upper bound of the accumulation zone size.
	maxPercent = float64(100)
	// defaultWorkers is the number of concurrent workers used when none is specified.
	defaultWorkers = 4
)

// AccumulationConfig represents the value area configuration.
type AccumulationConfig struct {
	// TargetPercent is the percentage of a bar's volume the value area must cover.
	TargetPercent float64
	// BorderPolicy selects the bucket prices used as the value area borders.
	BorderPolicy shared.BorderPolicy
}

// Validate asserts the config sane inputs.
func (cfg *AccumulationConfig) Validate() error {
	// NaN fails both comparisons.
	if !(cfg.TargetPercent > 0 && cfg.TargetPercent <= maxPercent) {
		return fmt.Errorf("%w: accumulation zone size must be greater than 0 and at most 100, got %v",
			shared.ErrInvalidConfiguration, cfg.TargetPercent)
	}

	return nil
}

// Window represents the bucket range of a value area.
type Window struct {
	// Dominant is the index of the bucket with the most volume.
	Dominant int
	// Lower is the index of the lowest bucket in the window.
	Lower int
	// Upper is the index of the highest bucket in the window.
	Upper int
	// Enclosed is the volume covered by the window.
	Enclosed float64
	// Total is the volume of every bucket.
	Total float64
}

// Ratio returns the percentage of volume covered by the window.
func (w *Window) Ratio() float64 {
	return w.Enclosed / w.Total * 100
}

// SortBuckets returns a copy of the provided buckets sorted by average price. Buckets with equal
// average prices keep their relative order.
func SortBuckets(buckets []shared.PriceBucket) []shared.PriceBucket {
	sorted := slices.Clone(buckets)
	slices.SortStableFunc(sorted, func(a, b shared.PriceBucket) int {
		return cmp.Compare(a.AveragePrice, b.AveragePrice)
	})

	return sorted
}

// FindValueArea expands a window around the dominant bucket of the provided price sorted buckets
// until it covers the target percentage of their volume. The buckets must not be empty.
func FindValueArea(sorted []shared.PriceBucket, targetPercent float64) Window {
	var w Window

	// The leftmost bucket wins when several share the maximum quantity.
	for idx := range sorted {
		if w.Enclosed < sorted[idx].Quantity {
			w.Enclosed = sorted[idx].Quantity
			w.Dominant = idx
		}

		w.Total += sorted[idx].Quantity
	}

	w.Lower = w.Dominant
	w.Upper = w.Dominant
	last := len(sorted) - 1

	for w.Ratio() < targetPercent {
		if w.Lower == 0 && w.Upper == last {
			// Rounding can leave the ratio a hair under 100 with every bucket admitted.
			break
		}

		var upQty, downQty float64
		if w.Upper < last {
			upQty = sorted[w.Upper+1].Quantity
		}
		if w.Lower > 0 {
			downQty = sorted[w.Lower-1].Quantity
		}

		switch {
		case upQty > downQty:
			w.Upper++
			w.Enclosed += upQty
		case downQty > 0 || w.Lower > 0:
			w.Lower--
			w.Enclosed += downQty
		default:
			// The lower side is exhausted and the upper neighbour adds nothing, admit it anyway.
			w.Upper++
			w.Enclosed += upQty
		}
	}

	return w
}

// ValueAreaGenerator represents the accumulation zone (value area) indicator.
type ValueAreaGenerator struct {
	cfg    AccumulationConfig
	logger *zerolog.Logger
}

// NewValueAreaGenerator initializes a value area indicator with the provided configuration. A nil
// logger discards diagnostics.
func NewValueAreaGenerator(cfg *AccumulationConfig, logger *zerolog.Logger) (*ValueAreaGenerator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &ValueAreaGenerator{
		cfg:    *cfg,
		logger: logger,
	}, nil
}

// borders extracts the value area borders of the provided window.
func (v *ValueAreaGenerator) borders(sorted []shared.PriceBucket, w *Window) (shared.ValueArea, error) {
	upper := &sorted[w.Upper]
	lower := &sorted[w.Lower]

	switch v.cfg.BorderPolicy {
	case shared.AveragePrice:
		return shared.ValueArea{Upper: upper.AveragePrice, Lower: lower.AveragePrice}, nil
	case shared.HighLow:
		return shared.ValueArea{Upper: upper.HighPrice, Lower: lower.LowPrice}, nil
	case shared.MaxMin:
		return shared.ValueArea{Upper: upper.MaxPrice, Lower: lower.MinPrice}, nil
	default:
		return shared.ValueArea{}, fmt.Errorf("%w: unknown border policy %d",
			shared.ErrInvalidConfiguration, int(v.cfg.BorderPolicy))
	}
}

// ComputeBar computes the value area of the provided bar. An empty bar yields a zero value area
// and an error wrapping shared.ErrEmptyBarData, which callers are expected to recover from.
func (v *ValueAreaGenerator) ComputeBar(idx int, buckets shared.BarBuckets) (shared.ValueArea, error) {
	v.logger.Info().Int("bar", idx).Msgf("bar has %d buckets", len(buckets))

	if len(buckets) == 0 {
		v.logger.Warn().Int("bar", idx).Msg(shared.ErrEmptyBarData.Error())
		return shared.ValueArea{}, fmt.Errorf("bar %d: %w", idx, shared.ErrEmptyBarData)
	}

	sorted := SortBuckets(buckets)
	if v.logger.GetLevel() <= zerolog.DebugLevel {
		for i := range sorted {
			if sorted[i].Inverted() {
				v.logger.Debug().Int("bar", idx).Msgf("bucket low price above high price: %s",
					spew.Sdump(sorted[i]))
			}
		}
	}

	w := FindValueArea(sorted, v.cfg.TargetPercent)

	return v.borders(sorted, &w)
}

// compute computes the value area of the provided bar, recovering from empty bars.
func (v *ValueAreaGenerator) compute(idx int, buckets shared.BarBuckets) (shared.ValueArea, bool, error) {
	area, err := v.ComputeBar(idx, buckets)
	if err != nil {
		if errors.Is(err, shared.ErrEmptyBarData) {
			return shared.ValueArea{}, true, nil
		}

		return shared.ValueArea{}, false, err
	}

	return area, false, nil
}

// ComputeInto computes the value area of every provided bar into the provided output, which must
// be the same length as bars. The output contents are undefined if an error is returned.
func (v *ValueAreaGenerator) ComputeInto(out []shared.ValueArea, bars []shared.BarBuckets) error {
	if len(out) != len(bars) {
		return fmt.Errorf("output length mismatch, %d != %d", len(out), len(bars))
	}

	var empty int
	for idx := range bars {
		area, isEmpty, err := v.compute(idx, bars[idx])
		if err != nil {
			return err
		}

		if isEmpty {
			empty++
		}

		out[idx] = area
	}

	v.logger.Info().Msgf("computed value areas for %d bars (%d empty)", len(bars), empty)

	return nil
}

// Compute computes the value area of every provided bar.
func (v *ValueAreaGenerator) Compute(bars []shared.BarBuckets) ([]shared.ValueArea, error) {
	areas := make([]shared.ValueArea, len(bars))
	err := v.ComputeInto(areas, bars)
	if err != nil {
		return nil, err
	}

	return areas, nil
}

// ComputeConcurrent computes the value area of every provided bar using the provided number of
// concurrent workers. The computation stops between bars when the context is cancelled.
func (v *ValueAreaGenerator) ComputeConcurrent(ctx context.Context, bars []shared.BarBuckets, workers int) ([]shared.ValueArea, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}

	areas := make([]shared.ValueArea, len(bars))
	var empty atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for idx := range bars {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			area, isEmpty, err := v.compute(idx, bars[idx])
			if err != nil {
				return err
			}

			if isEmpty {
				empty.Inc()
			}

			areas[idx] = area
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	// Bars skipped after a cancellation leave their slots unset.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.logger.Info().Msgf("computed value areas for %d bars (%d empty) with %d workers",
		len(bars), empty.Load(), workers)

	return areas, nil
}
