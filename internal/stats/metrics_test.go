package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/scoring"
)

// peakCoefficients predicts positive exactly when oldpeak > 0.
func peakCoefficients(t *testing.T) scoring.CoefficientSet {
	t.Helper()
	coeffs, err := scoring.NewCoefficientSet(0, map[string]float64{model.FeatureOldpeak: 1})
	require.NoError(t, err)
	return coeffs
}

func patient(sex, oldpeak float64, target int) model.Record {
	return model.Record{Sex: sex, Oldpeak: oldpeak}.WithLabel(target)
}

func TestComputeMetricsConfusion(t *testing.T) {
	records := []model.Record{
		patient(1, 2, 1),  // TP
		patient(1, 2, 0),  // FP
		patient(0, -2, 0), // TN
		patient(0, -2, 1), // FN
		patient(0, 3, 1),  // TP
	}
	m, err := ComputeMetrics(records, peakCoefficients(t))
	require.NoError(t, err)

	assert.Equal(t, model.Confusion{TP: 2, FP: 1, TN: 1, FN: 1}, m.Confusion)
	assert.Equal(t, len(records), m.Count)
	assert.Equal(t, m.Count, m.Confusion.Total())
	assert.InDelta(t, 3.0/5.0, m.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.Precision, 1e-12)
	assert.InDelta(t, 1.0/2.0, m.Specificity, 1e-12)
}

func TestComputeMetricsEmpty(t *testing.T) {
	m, err := ComputeMetrics(nil, scoring.DefaultCoefficients())
	require.NoError(t, err)
	assert.Equal(t, model.Metrics{}, m)
}

func TestComputeMetricsZeroDenominators(t *testing.T) {
	// Only negatives, all predicted negative: recall and precision have no denominator.
	records := []model.Record{patient(1, -1, 0), patient(0, -1, 0)}
	m, err := ComputeMetrics(records, peakCoefficients(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 0.0, m.Recall)
	assert.Equal(t, 0.0, m.Precision)
	assert.Equal(t, 1.0, m.Specificity)
}

func TestComputeMetricsRatesInUnitInterval(t *testing.T) {
	coeffs := scoring.DefaultCoefficients()
	var records []model.Record
	for i := 0; i < 40; i++ {
		r := model.DefaultPatient()
		r.Age = float64(30 + i)
		r.Thalach = float64(100 + 3*i)
		r.Sex = float64(i % 2)
		records = append(records, r.WithLabel(i%3%2))
	}
	for _, threshold := range []float64{0, 0.25, 0.5, 0.75, 1} {
		m, err := ComputeMetricsAt(records, coeffs, threshold)
		require.NoError(t, err)
		assert.Equal(t, len(records), m.Confusion.Total())
		for _, v := range []float64{m.Accuracy, m.Recall, m.Precision, m.Specificity} {
			if v < 0 || v > 1 {
				t.Fatalf("rate %v out of range at threshold %v", v, threshold)
			}
		}
	}
}

func TestComputeMetricsThresholdIsStrict(t *testing.T) {
	// oldpeak 0 scores exactly 0.5, which is not above the default threshold.
	m, err := ComputeMetrics([]model.Record{patient(1, 0, 1)}, peakCoefficients(t))
	require.NoError(t, err)
	assert.Equal(t, model.Confusion{FN: 1}, m.Confusion)
}

func TestComputeMetricsUnlabeledRecord(t *testing.T) {
	records := []model.Record{patient(1, 1, 1), {Sex: 1, Oldpeak: 1}}
	_, err := ComputeMetrics(records, peakCoefficients(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, scoring.ErrInvalidRecord))

	var invalid *scoring.InvalidRecordError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 1, invalid.Index)
	assert.Equal(t, model.ColumnTarget, invalid.Field)
}

func TestComputeMetricsRejectsNonBinaryLabel(t *testing.T) {
	_, err := ComputeMetrics([]model.Record{patient(1, 1, 2)}, peakCoefficients(t))
	assert.ErrorIs(t, err, scoring.ErrInvalidRecord)
}

func TestConfusionAddMatchesSequentialCount(t *testing.T) {
	records := []model.Record{
		patient(1, 2, 1), patient(1, 2, 0), patient(0, -2, 0),
		patient(0, -2, 1), patient(0, 3, 1), patient(1, -4, 0),
	}
	coeffs := peakCoefficients(t)
	whole, err := ComputeMetrics(records, coeffs)
	require.NoError(t, err)
	left, err := ComputeMetrics(records[:2], coeffs)
	require.NoError(t, err)
	right, err := ComputeMetrics(records[2:], coeffs)
	require.NoError(t, err)

	assert.Equal(t, whole.Confusion, left.Confusion.Add(right.Confusion))
	assert.Equal(t, whole.Confusion, right.Confusion.Add(left.Confusion))
	assert.Equal(t, whole, MetricsFromConfusion(left.Confusion.Add(right.Confusion)))
}
