package shared

// ValueArea represents the accumulation zone borders of a bar.
type ValueArea struct {
	Upper float64
	Lower float64
}

// UpperBorders returns the upper border series of the provided value areas.
func UpperBorders(areas []ValueArea) []float64 {
	borders := make([]float64, len(areas))
	for idx := range areas {
		borders[idx] = areas[idx].Upper
	}

	return borders
}

// LowerBorders returns the lower border series of the provided value areas.
func LowerBorders(areas []ValueArea) []float64 {
	borders := make([]float64, len(areas))
	for idx := range areas {
		borders[idx] = areas[idx].Lower
	}

	return borders
}
