package statistics

import (
	"math"
	"sort"

	telemetry "ztbus-analyser/internal/telemetry/domain"
)

// Field names of a descriptive summary.
const (
	FieldMean = "mean"
	FieldStd  = "std"
	FieldMin  = "min"
	FieldP25  = "25p"
	FieldP50  = "50p"
	FieldP75  = "75p"
	FieldMax  = "max"
)

// Summary describes a sample of values. Fields are nil when undefined for
// the sample size.
type Summary struct {
	Count int
	Mean  *float64
	Std   *float64
	Min   *float64
	P25   *float64
	P50   *float64
	P75   *float64
	Max   *float64
}

// Fields returns the summary keyed by field name.
func (s Summary) Fields() map[string]*float64 {
	return map[string]*float64{
		FieldMean: s.Mean,
		FieldStd:  s.Std,
		FieldMin:  s.Min,
		FieldP25:  s.P25,
		FieldP50:  s.P50,
		FieldP75:  s.P75,
		FieldMax:  s.Max,
	}
}

// Describe summarises values. Std is the sample standard deviation and
// quantiles interpolate linearly between closest ranks.
func Describe(values []float64) Summary {
	summary := Summary{Count: len(values)}
	if len(values) == 0 {
		return summary
	}
	sorted := sortedCopy(values)
	summary.Mean = Mean(values)
	summary.Std = Std(values)
	summary.Min = ptr(sorted[0])
	summary.P25 = ptr(quantileSorted(sorted, 0.25))
	summary.P50 = ptr(quantileSorted(sorted, 0.5))
	summary.P75 = ptr(quantileSorted(sorted, 0.75))
	summary.Max = ptr(sorted[len(sorted)-1])
	return summary
}

// Mean returns the arithmetic mean or nil for no values.
func Mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return ptr(sum / float64(len(values)))
}

// Variance returns the sample variance (n-1 denominator) or nil for fewer
// than two values.
func Variance(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	mean := *Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return ptr(sum / float64(len(values)-1))
}

// Std returns the sample standard deviation or nil for fewer than two values.
func Std(values []float64) *float64 {
	variance := Variance(values)
	if variance == nil {
		return nil
	}
	return ptr(math.Sqrt(*variance))
}

// Median returns the 0.5 quantile or nil for no values.
func Median(values []float64) *float64 {
	return Quantile(values, 0.5)
}

// Quantile returns the q quantile with linear interpolation, or nil for no values.
func Quantile(values []float64, q float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	return ptr(quantileSorted(sortedCopy(values), q))
}

func quantileSorted(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// Column collects the non-null values of a numeric column.
func Column(samples []telemetry.Sample, column string) []float64 {
	values := make([]float64, 0, len(samples))
	for _, sample := range samples {
		if v, ok := sample.Value(column); ok {
			values = append(values, v)
		}
	}
	return values
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

func ptr(v float64) *float64 {
	return &v
}
