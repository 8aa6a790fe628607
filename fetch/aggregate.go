package fetch

import (
	"fmt"
	"math"
	"slices"

	"github.com/dnldd/zone/shared"
)

// maxLevel is the largest price to step ratio whose bucket level is exact.
const maxLevel = float64(1 << 53)

// bucketAccumulator tracks the running statistics of a price bucket.
type bucketAccumulator struct {
	quantity      float64
	priceQuantity float64
	priceSum      float64
	trades        int
	high          float64
	low           float64
}

// Aggregate groups the provided trades into price buckets of the provided step size. A trade
// belongs to the bucket spanning [n*step, (n+1)*step) that contains its price.
func Aggregate(trades []shared.Trade, step float64) (shared.BarBuckets, error) {
	if !(step > 0) || math.IsInf(step, 1) {
		return nil, fmt.Errorf("bucket step must be a positive number, got %v", step)
	}

	accumulators := make(map[int64]*bucketAccumulator)
	for idx := range trades {
		trade := trades[idx]
		if trade.Quantity < 0 || math.IsNaN(trade.Quantity) {
			return nil, fmt.Errorf("trade %d: invalid quantity %v", idx, trade.Quantity)
		}
		if math.IsNaN(trade.Price) || math.IsInf(trade.Price, 0) {
			return nil, fmt.Errorf("trade %d: invalid price %v", idx, trade.Price)
		}

		ratio := math.Floor(trade.Price / step)
		if math.Abs(ratio) > maxLevel {
			return nil, fmt.Errorf("trade %d: price %v is out of range for bucket step %v", idx, trade.Price, step)
		}

		level := int64(ratio)
		acc, ok := accumulators[level]
		if !ok {
			acc = &bucketAccumulator{
				high: trade.Price,
				low:  trade.Price,
			}
			accumulators[level] = acc
		}

		acc.quantity += trade.Quantity
		acc.priceQuantity += trade.Price * trade.Quantity
		acc.priceSum += trade.Price
		acc.trades++
		acc.high = math.Max(acc.high, trade.Price)
		acc.low = math.Min(acc.low, trade.Price)
	}

	levels := make([]int64, 0, len(accumulators))
	for level := range accumulators {
		levels = append(levels, level)
	}
	slices.Sort(levels)

	buckets := make(shared.BarBuckets, 0, len(levels))
	for _, level := range levels {
		acc := accumulators[level]

		// Buckets of zero quantity trades fall back to the plain average.
		average := acc.priceSum / float64(acc.trades)
		if acc.quantity > 0 {
			average = acc.priceQuantity / acc.quantity
		}

		buckets = append(buckets, shared.PriceBucket{
			Quantity:     acc.quantity,
			AveragePrice: average,
			HighPrice:    acc.high,
			LowPrice:     acc.low,
			MaxPrice:     float64(level+1) * step,
			MinPrice:     float64(level) * step,
		})
	}

	return buckets, nil
}
