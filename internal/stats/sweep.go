package stats

import (
	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/scoring"
)

const sweepSteps = 20

// ScoredCase is a labeled record reduced to what threshold changes need.
type ScoredCase struct {
	Probability float64
	Actual      bool
	Group       Group
}

// ScoreCases scores every record once so reports can be rebuilt at any
// threshold without rescoring.
func ScoreCases(records []model.Record, coeffs scoring.CoefficientSet, sel GroupSelector) ([]ScoredCase, error) {
	out := make([]ScoredCase, 0, len(records))
	for i, r := range records {
		actual, err := labelOf(r)
		if err != nil {
			return nil, scoring.AtIndex(err, i)
		}
		p, err := scoring.Score(r, coeffs)
		if err != nil {
			return nil, scoring.AtIndex(err, i)
		}
		group := Unmatched
		if sel.Assign != nil {
			group = sel.Assign(r)
		}
		out = append(out, ScoredCase{Probability: p, Actual: actual, Group: group})
	}
	return out, nil
}

// ReportFromCases builds a fairness report from pre-scored cases.
func ReportFromCases(cases []ScoredCase, sel GroupSelector, threshold float64) model.FairnessReport {
	var overall, a, b model.Confusion
	unmatched := 0
	for _, c := range cases {
		predicted := scoring.Classify(c.Probability, threshold)
		overall = tally(overall, predicted, c.Actual)
		switch c.Group {
		case GroupA:
			a = tally(a, predicted, c.Actual)
		case GroupB:
			b = tally(b, predicted, c.Actual)
		default:
			unmatched++
		}
	}
	return assembleReport(MetricsFromConfusion(overall), MetricsFromConfusion(a), MetricsFromConfusion(b), sel, unmatched, threshold)
}

// SweepPoint is a report at one decision threshold.
type SweepPoint struct {
	Threshold float64              `json:"threshold" yaml:"threshold"`
	Report    model.FairnessReport `json:"report" yaml:"report"`
}

// DefaultThresholds returns 0.05 through 0.95 in steps of 0.05.
func DefaultThresholds() []float64 {
	out := make([]float64, 0, sweepSteps-1)
	for i := 1; i < sweepSteps; i++ {
		out = append(out, float64(i)/sweepSteps)
	}
	return out
}

// Sweep rebuilds the report at each threshold.
func Sweep(cases []ScoredCase, sel GroupSelector, thresholds []float64) []SweepPoint {
	out := make([]SweepPoint, 0, len(thresholds))
	for _, t := range thresholds {
		out = append(out, SweepPoint{Threshold: t, Report: ReportFromCases(cases, sel, t)})
	}
	return out
}
