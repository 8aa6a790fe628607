package shared

import (
	"context"
)

// BucketProvider defines the requirements for fetching per bar price buckets.
type BucketProvider interface {
	// FetchBars fetches the price buckets of every bar, indexed by bar.
	FetchBars(ctx context.Context) ([]BarBuckets, error)
}
