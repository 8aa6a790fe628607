package shared

import "errors"

var (
	// ErrInvalidConfiguration is returned when the accumulation configuration is malformed.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrEmptyBarData denotes a bar without price buckets.
	ErrEmptyBarData = errors.New("empty bucket set encountered")
)
