package shared

import (
	"fmt"
)

// MaxBars is the largest number of bars stored bucket rows can describe.
const MaxBars = 1 << 20

// BucketRow represents a stored price bucket of a bar.
type BucketRow struct {
	Bar          int64   `parquet:"bar"`
	Quantity     float64 `parquet:"quantity"`
	AveragePrice float64 `parquet:"averageprice"`
	HighPrice    float64 `parquet:"highprice"`
	LowPrice     float64 `parquet:"lowprice"`
	MaxPrice     float64 `parquet:"maxprice"`
	MinPrice     float64 `parquet:"minprice"`
}

// Bucket returns the price bucket of the row.
func (r *BucketRow) Bucket() PriceBucket {
	return PriceBucket{
		Quantity:     r.Quantity,
		AveragePrice: r.AveragePrice,
		HighPrice:    r.HighPrice,
		LowPrice:     r.LowPrice,
		MaxPrice:     r.MaxPrice,
		MinPrice:     r.MinPrice,
	}
}

// NewBucketRow creates a stored row for the provided bar bucket.
func NewBucketRow(bar int64, bucket *PriceBucket) BucketRow {
	return BucketRow{
		Bar:          bar,
		Quantity:     bucket.Quantity,
		AveragePrice: bucket.AveragePrice,
		HighPrice:    bucket.HighPrice,
		LowPrice:     bucket.LowPrice,
		MaxPrice:     bucket.MaxPrice,
		MinPrice:     bucket.MinPrice,
	}
}

// GroupBucketRows groups the provided rows by bar. Bars up to the highest referenced bar
// without rows are empty.
func GroupBucketRows(rows []BucketRow) ([]BarBuckets, error) {
	var count int64
	for idx := range rows {
		if rows[idx].Bar < 0 {
			return nil, fmt.Errorf("row %d: bar index cannot be negative, got %d", idx, rows[idx].Bar)
		}
		if rows[idx].Bar >= MaxBars {
			return nil, fmt.Errorf("row %d: bar index must be below %d, got %d", idx, MaxBars, rows[idx].Bar)
		}

		if rows[idx].Bar+1 > count {
			count = rows[idx].Bar + 1
		}
	}

	bars := make([]BarBuckets, count)
	for idx := range rows {
		bar := rows[idx].Bar
		bars[bar] = append(bars[bar], rows[idx].Bucket())
	}

	return bars, nil
}
