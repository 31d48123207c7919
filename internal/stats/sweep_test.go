package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/scoring"
)

func TestDefaultThresholds(t *testing.T) {
	got := DefaultThresholds()
	require.Len(t, got, 19)
	assert.InDelta(t, 0.05, got[0], 1e-12)
	assert.InDelta(t, 0.5, got[9], 1e-12)
	assert.InDelta(t, 0.95, got[18], 1e-12)
}

func TestReportFromCasesMatchesBuildReport(t *testing.T) {
	coeffs := scoring.DefaultCoefficients()
	sel := SexSelector()
	var records []model.Record
	for i := 0; i < 30; i++ {
		r := model.DefaultPatient()
		r.Sex = float64(i % 3) // 2 lands in neither group
		r.Age = float64(40 + i)
		r.Thalach = float64(130 + 2*i)
		records = append(records, r.WithLabel(i%2))
	}
	cases, err := ScoreCases(records, coeffs, sel)
	require.NoError(t, err)

	for _, threshold := range DefaultThresholds() {
		want, err := BuildReportAt(records, coeffs, sel, threshold)
		require.NoError(t, err)
		assert.Equal(t, want, ReportFromCases(cases, sel, threshold))
	}
}

func TestSweepRecallIsMonotone(t *testing.T) {
	records := []model.Record{
		patient(1, 0.5, 1), patient(1, 1.5, 1), patient(1, -1, 0),
		patient(0, -0.5, 1), patient(0, 3, 1), patient(0, -2, 0),
	}
	sel := SexSelector()
	cases, err := ScoreCases(records, peakCoefficients(t), sel)
	require.NoError(t, err)

	points := Sweep(cases, sel, DefaultThresholds())
	require.Len(t, points, 19)
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1].Report, points[i].Report
		if cur.GroupA.Metrics.Recall > prev.GroupA.Metrics.Recall {
			t.Fatalf("male recall rose between %v and %v", points[i-1].Threshold, points[i].Threshold)
		}
		if cur.GroupB.Metrics.Recall > prev.GroupB.Metrics.Recall {
			t.Fatalf("female recall rose between %v and %v", points[i-1].Threshold, points[i].Threshold)
		}
		assert.Equal(t, points[i].Threshold, cur.Threshold)
	}
}

func TestScoreCasesRejectsUnlabeled(t *testing.T) {
	_, err := ScoreCases([]model.Record{{Sex: 1}}, peakCoefficients(t), SexSelector())
	assert.ErrorIs(t, err, scoring.ErrInvalidRecord)
}
