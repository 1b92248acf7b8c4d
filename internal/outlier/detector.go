// Package outlier flags statistically atypical values through
// population z-scores.
package outlier

import (
	"math"
)

// Flag marks one value whose absolute z-score met the threshold. The
// score travels with the flag so every finding stays auditable.
type Flag struct {
	Index  int     `json:"INDICE"`
	Value  float64 `json:"VALOR"`
	ZScore float64 `json:"ZSCORE"`
}

// DefaultThreshold is three standard deviations.
const DefaultThreshold = 3.0

// minSample is the smallest population a z-score can be computed over.
const minSample = 3

// Detect computes population mean and standard deviation over the
// non-missing values (NaN marks missing) and flags every value with
// |z| >= threshold. Flags are symmetric: unusually small values
// qualify the same as unusually large ones. Fewer than three values or
// a zero deviation yields no outliers; that is a statistical
// non-computability, not an error.
func Detect(values []float64, threshold float64) []Flag {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	mean, std, n := stats(values)
	if n < minSample || std == 0 {
		return nil
	}

	var flags []Flag
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		z := math.Abs(v-mean) / std
		if z >= threshold {
			flags = append(flags, Flag{
				Index:  i,
				Value:  v,
				ZScore: round4(z),
			})
		}
	}
	return flags
}

func stats(values []float64) (mean, std float64, n int) {
	var sum float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0, 0
	}
	mean = sum / float64(n)

	var sq float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(n))
	return mean, std, n
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
