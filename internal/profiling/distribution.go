package profiling

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// DistributionAnalyzer handles distribution shape analysis
type DistributionAnalyzer struct {
	alpha float64
}

// NewDistributionAnalyzer creates a new distribution analyzer
func NewDistributionAnalyzer() *DistributionAnalyzer {
	return &DistributionAnalyzer{alpha: 0.05}
}

// Summarize computes the numeric summary of a non-empty sample
func (da *DistributionAnalyzer) Summarize(data []float64) (NumericSummary, error) {
	var summary NumericSummary

	mean, err := stats.Mean(data)
	if err != nil {
		return summary, err
	}

	// Sample standard deviation, matching describe()
	stdDev := 0.0
	if len(data) > 1 {
		stdDev, err = stats.StandardDeviationSample(data)
		if err != nil {
			return summary, err
		}
	}

	min, err := stats.Min(data)
	if err != nil {
		return summary, err
	}

	max, err := stats.Max(data)
	if err != nil {
		return summary, err
	}

	median, err := stats.Median(data)
	if err != nil {
		return summary, err
	}

	q25, err := stats.PercentileNearestRank(data, 25)
	if err != nil {
		return summary, err
	}

	q75, err := stats.PercentileNearestRank(data, 75)
	if err != nil {
		return summary, err
	}

	summary.Mean = mean
	summary.StdDev = stdDev
	summary.Min = min
	summary.Max = max
	summary.Median = median
	summary.Q25 = q25
	summary.Q75 = q75
	summary.Skewness = calculateSkewness(data, mean)
	summary.Kurtosis = calculateKurtosis(data, mean)
	summary.NormalityP = jarqueBeraP(len(data), summary.Skewness, summary.Kurtosis)
	summary.IsNormal = summary.NormalityP > da.alpha
	summary.Outliers = detectOutliers(data, q25, q75)

	return summary, nil
}

// centralMoments returns the population second, third and fourth central moments
func centralMoments(data []float64, mean float64) (m2, m3, m4 float64) {
	n := float64(len(data))
	for _, x := range data {
		d := x - mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	return m2 / n, m3 / n, m4 / n
}

// calculateSkewness computes sample skewness using the adjusted Fisher-Pearson coefficient
func calculateSkewness(data []float64, mean float64) float64 {
	if len(data) < 3 {
		return 0
	}
	m2, m3, _ := centralMoments(data, mean)
	if m2 == 0 {
		return 0
	}

	n := float64(len(data))
	g1 := m3 / math.Pow(m2, 1.5)
	return g1 * math.Sqrt(n*(n-1)) / (n - 2)
}

// calculateKurtosis computes bias-corrected sample excess kurtosis
func calculateKurtosis(data []float64, mean float64) float64 {
	if len(data) < 4 {
		return 0
	}
	m2, _, m4 := centralMoments(data, mean)
	if m2 == 0 {
		return 0
	}

	n := float64(len(data))
	g2 := m4/(m2*m2) - 3
	return ((n+1)*g2 + 6) * (n - 1) / ((n - 2) * (n - 3))
}

// jarqueBeraP tests normality from skewness and excess kurtosis. The statistic
// is asymptotically chi-squared with two degrees of freedom.
func jarqueBeraP(n int, skewness, kurtosis float64) float64 {
	if n < 3 {
		return 1.0
	}
	jb := float64(n) / 6 * (skewness*skewness + kurtosis*kurtosis/4)
	return distuv.ChiSquared{K: 2}.Survival(jb)
}

// detectOutliers identifies outliers using IQR method
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}

	return outlierCount
}
