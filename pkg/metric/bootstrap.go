package metric

import (
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// BootstrapInterval represents the confidence interval calculated by the bootstrap method.
type BootstrapInterval struct {
	Lower  float64 // Lower bound of the confidence interval
	Upper  float64 // Upper bound of the confidence interval
	StdDev float64 // Standard deviation of the bootstrap samples
	Mean   float64 // Mean of the bootstrap samples
}

// Bootstrap calculates the confidence interval of a sample using the
// bootstrap method: resample with replacement, apply the measure to
// each resample, take the quantiles of the resulting distribution.
func Bootstrap(values []float64, measure func([]float64) float64, sampleSize int,
	confidence float64) BootstrapInterval {

	if len(values) == 0 {
		return BootstrapInterval{}
	}

	data := make([]float64, 0, sampleSize)
	for i := 0; i < sampleSize; i++ {
		samples := make([]float64, len(values))
		for j := range samples {
			samples[j] = lo.Sample(values)
		}
		data = append(data, measure(samples))
	}

	tail := 1 - confidence
	sort.Float64s(data)

	mean, stdDev := stat.MeanStdDev(data, nil)

	return BootstrapInterval{
		Lower:  stat.Quantile(tail/2, stat.LinInterp, data, nil),
		Upper:  stat.Quantile(1-tail/2, stat.LinInterp, data, nil),
		StdDev: stdDev,
		Mean:   mean,
	}
}
