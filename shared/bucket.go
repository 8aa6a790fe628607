package shared

// PriceBucket represents a discretized price level aggregate of the trades within a bar.
type PriceBucket struct {
	// Quantity is the traded volume attributed to the bucket.
	Quantity float64
	// AveragePrice is the representative (volume weighted) price of the bucket.
	AveragePrice float64
	// HighPrice is the highest trade price observed inside the bucket.
	HighPrice float64
	// LowPrice is the lowest trade price observed inside the bucket.
	LowPrice float64
	// MaxPrice is the upper boundary of the bucket's price range.
	MaxPrice float64
	// MinPrice is the lower boundary of the bucket's price range.
	MinPrice float64
}

// Inverted returns true if the bucket's low price is above its high price.
func (b *PriceBucket) Inverted() bool {
	return b.LowPrice > b.HighPrice
}

// BarBuckets represents the price buckets of a single bar. A bar with no recorded
// trades has no buckets.
type BarBuckets []PriceBucket

// Trade represents a unit trade.
type Trade struct {
	Price    float64
	Quantity float64
}
