// Package stats contains metric calculations, fairness reports and rendering.
package stats

import (
	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/scoring"
)

// ComputeMetrics scores every record at the default threshold and summarizes
// the confusion matrix. Every record must be labeled.
func ComputeMetrics(records []model.Record, coeffs scoring.CoefficientSet) (model.Metrics, error) {
	return ComputeMetricsAt(records, coeffs, scoring.DefaultThreshold)
}

// ComputeMetricsAt is ComputeMetrics with an explicit decision threshold.
func ComputeMetricsAt(records []model.Record, coeffs scoring.CoefficientSet, threshold float64) (model.Metrics, error) {
	var c model.Confusion
	for i, r := range records {
		actual, err := labelOf(r)
		if err != nil {
			return model.Metrics{}, scoring.AtIndex(err, i)
		}
		p, err := scoring.Score(r, coeffs)
		if err != nil {
			return model.Metrics{}, scoring.AtIndex(err, i)
		}
		c = tally(c, scoring.Classify(p, threshold), actual)
	}
	return MetricsFromConfusion(c), nil
}

// MetricsFromConfusion derives rates from counts. A zero denominator yields 0.
func MetricsFromConfusion(c model.Confusion) model.Metrics {
	total := c.Total()
	return model.Metrics{
		Accuracy:    safeDivide(c.TP+c.TN, total),
		Recall:      safeDivide(c.TP, c.TP+c.FN),
		Precision:   safeDivide(c.TP, c.TP+c.FP),
		Specificity: safeDivide(c.TN, c.TN+c.FP),
		Count:       total,
		Confusion:   c,
	}
}

func tally(c model.Confusion, predicted, actual bool) model.Confusion {
	switch {
	case predicted && actual:
		c.TP++
	case predicted && !actual:
		c.FP++
	case !predicted && !actual:
		c.TN++
	default:
		c.FN++
	}
	return c
}

func labelOf(r model.Record) (bool, error) {
	label, ok := r.Label()
	if !ok {
		return false, &scoring.InvalidRecordError{Index: -1, Field: model.ColumnTarget, Reason: "is missing"}
	}
	switch label {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &scoring.InvalidRecordError{Index: -1, Field: model.ColumnTarget, Reason: "must be 0 or 1"}
	}
}

func safeDivide(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
