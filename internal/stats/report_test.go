package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/scoring"
)

func TestBuildReportFourRecords(t *testing.T) {
	records := []model.Record{
		patient(1, 2, 1),  // male TP
		patient(1, 2, 0),  // male FP
		patient(0, 2, 1),  // female TP
		patient(0, -2, 1), // female FN
	}
	report, err := BuildReport(records, peakCoefficients(t), SexSelector())
	require.NoError(t, err)

	assert.Equal(t, scoring.DefaultThreshold, report.Threshold)
	assert.Equal(t, "male", report.GroupA.Name)
	assert.Equal(t, "female", report.GroupB.Name)
	assert.Zero(t, report.Unmatched)

	male := report.GroupA.Metrics
	assert.Equal(t, model.Confusion{TP: 1, FP: 1}, male.Confusion)
	assert.Equal(t, 2, male.Count)
	assert.Equal(t, 0.5, male.Accuracy)
	assert.Equal(t, 1.0, male.Recall)
	assert.Equal(t, 0.5, male.Precision)
	assert.Equal(t, 0.0, male.Specificity)

	female := report.GroupB.Metrics
	assert.Equal(t, model.Confusion{TP: 1, FN: 1}, female.Confusion)
	assert.Equal(t, 0.5, female.Accuracy)
	assert.Equal(t, 0.5, female.Recall)
	assert.Equal(t, 1.0, female.Precision)
	assert.Equal(t, 0.0, female.Specificity)

	overall := report.Overall
	assert.Equal(t, model.Confusion{TP: 2, FP: 1, FN: 1}, overall.Confusion)
	assert.Equal(t, 0.5, overall.Accuracy)
	assert.InDelta(t, 2.0/3.0, overall.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, overall.Precision, 1e-12)

	assert.Equal(t, male.Recall-female.Recall, report.Disparity.RecallGap)
	assert.Equal(t, 0.5, report.Disparity.RecallGap)
	assert.Equal(t, 0.0, report.Disparity.AccuracyGap)
}

func TestBuildReportAllMale(t *testing.T) {
	records := []model.Record{
		patient(1, 2, 1),
		patient(1, -2, 1),
		patient(1, 2, 1),
	}
	report, err := BuildReport(records, peakCoefficients(t), SexSelector())
	require.NoError(t, err)

	assert.Equal(t, model.Metrics{}, report.GroupB.Metrics)
	assert.InDelta(t, 2.0/3.0, report.GroupA.Metrics.Recall, 1e-12)
	assert.Equal(t, report.GroupA.Metrics.Recall, report.Disparity.RecallGap)
	assert.Equal(t, report.GroupA.Metrics.Accuracy, report.Disparity.AccuracyGap)
	assert.Equal(t, report.Overall, report.GroupA.Metrics)
}

func TestBuildReportGapIsSigned(t *testing.T) {
	records := []model.Record{
		patient(1, -2, 1), // male FN
		patient(0, 2, 1),  // female TP
	}
	report, err := BuildReport(records, peakCoefficients(t), SexSelector())
	require.NoError(t, err)
	assert.Equal(t, -1.0, report.Disparity.RecallGap)
}

func TestBuildReportUnmatchedCountsOnlyOverall(t *testing.T) {
	records := []model.Record{
		patient(1, 2, 1),
		patient(0, 2, 1),
		patient(2, -2, 1),
	}
	report, err := BuildReport(records, peakCoefficients(t), SexSelector())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Unmatched)
	assert.Equal(t, 3, report.Overall.Count)
	assert.Equal(t, 1, report.GroupA.Metrics.Count)
	assert.Equal(t, 1, report.GroupB.Metrics.Count)
	assert.InDelta(t, 2.0/3.0, report.Overall.Recall, 1e-12)
	assert.Equal(t, 1.0, report.GroupA.Metrics.Recall)
	assert.Equal(t, 1.0, report.GroupB.Metrics.Recall)
}

func TestBuildReportEmpty(t *testing.T) {
	report, err := BuildReport(nil, scoring.DefaultCoefficients(), SexSelector())
	require.NoError(t, err)
	assert.Equal(t, model.Metrics{}, report.Overall)
	assert.Equal(t, model.Disparity{}, report.Disparity)
}

func TestBuildReportPropagatesInputIndex(t *testing.T) {
	records := []model.Record{patient(1, 1, 1), patient(0, 1, 1), {Sex: 0}}
	_, err := BuildReport(records, peakCoefficients(t), SexSelector())

	var invalid *scoring.InvalidRecordError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 2, invalid.Index)
}

func TestBuildReportRequiresAssign(t *testing.T) {
	_, err := BuildReport(nil, scoring.DefaultCoefficients(), GroupSelector{NameA: "a", NameB: "b"})
	assert.Error(t, err)
}

func TestPartitionWithoutAssign(t *testing.T) {
	records := []model.Record{{Sex: 1, Age: 1}, {Sex: 0, Age: 2}}
	parts := Partition(records, GroupSelector{NameA: "a", NameB: "b"})
	assert.Empty(t, parts.A)
	assert.Empty(t, parts.B)
	assert.Equal(t, records, parts.Unmatched)
}

func TestPartitionKeepsOrder(t *testing.T) {
	records := []model.Record{
		{Sex: 1, Age: 1}, {Sex: 0, Age: 2}, {Sex: 1, Age: 3}, {Sex: 0.5, Age: 4}, {Sex: 0, Age: 5},
	}
	parts := Partition(records, SexSelector())
	ages := func(rs []model.Record) []float64 {
		out := make([]float64, len(rs))
		for i, r := range rs {
			out[i] = r.Age
		}
		return out
	}
	assert.Equal(t, []float64{1, 3}, ages(parts.A))
	assert.Equal(t, []float64{2, 5}, ages(parts.B))
	assert.Equal(t, []float64{4}, ages(parts.Unmatched))
}

func TestBuildReportMatchesSequentialEvaluation(t *testing.T) {
	coeffs := scoring.DefaultCoefficients()
	var records []model.Record
	for i := 0; i < 60; i++ {
		r := model.DefaultPatient()
		r.Sex = float64(i % 2)
		r.Thalach = float64(120 + i)
		r.Chol = float64(180 + 2*i)
		records = append(records, r.WithLabel((i/3)%2))
	}
	report, err := BuildReportAt(records, coeffs, SexSelector(), 0.7)
	require.NoError(t, err)

	parts := Partition(records, SexSelector())
	overall, err := ComputeMetricsAt(records, coeffs, 0.7)
	require.NoError(t, err)
	male, err := ComputeMetricsAt(parts.A, coeffs, 0.7)
	require.NoError(t, err)
	female, err := ComputeMetricsAt(parts.B, coeffs, 0.7)
	require.NoError(t, err)

	assert.Equal(t, overall, report.Overall)
	assert.Equal(t, male, report.GroupA.Metrics)
	assert.Equal(t, female, report.GroupB.Metrics)
	assert.Equal(t, male.Recall-female.Recall, report.Disparity.RecallGap)
}
