package shared

import (
	"fmt"
	"strings"
)

// BorderPolicy represents the bucket price fields used as value area borders.
type BorderPolicy int

const (
	AveragePrice BorderPolicy = iota
	HighLow
	MaxMin
)

// String stringifies the provided border policy.
func (b *BorderPolicy) String() string {
	switch *b {
	case AveragePrice:
		return "average"
	case HighLow:
		return "highlow"
	case MaxMin:
		return "maxmin"
	default:
		return "unknown"
	}
}

// ParseBorderPolicy parses the provided border policy name.
func ParseBorderPolicy(name string) (BorderPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "average":
		return AveragePrice, nil
	case "highlow":
		return HighLow, nil
	case "maxmin":
		return MaxMin, nil
	default:
		return 0, fmt.Errorf("%w: unknown border policy '%s'", ErrInvalidConfiguration, name)
	}
}
