package scoring

import (
	"math"
	"sort"

	"github.com/verte-zerg/heartaudit/internal/model"
)

const (
	// DefaultThreshold is the decision boundary; a probability equal to it is negative.
	DefaultThreshold = 0.5

	labelHighRisk = "High Risk"
	labelLowRisk  = "Low Risk"
)

// LogOdds computes the linear predictor for a record.
func LogOdds(r model.Record, coeffs CoefficientSet) (float64, error) {
	sum := coeffs.intercept
	for _, t := range coeffs.terms {
		v, err := featureValue(r, t.Feature)
		if err != nil {
			return 0, err
		}
		sum += v * t.Weight
	}
	return sum, nil
}

// Score returns the risk probability for a record, strictly inside (0,1).
func Score(r model.Record, coeffs CoefficientSet) (float64, error) {
	z, err := LogOdds(r, coeffs)
	if err != nil {
		return 0, err
	}
	return Logistic(z), nil
}

// Logistic maps log-odds to a probability in the open interval (0,1).
func Logistic(z float64) float64 {
	var p float64
	if z >= 0 {
		p = 1 / (1 + math.Exp(-z))
	} else {
		e := math.Exp(z)
		p = e / (1 + e)
	}
	if p >= 1 {
		return math.Nextafter(1, 0)
	}
	if p <= 0 {
		return math.SmallestNonzeroFloat64
	}
	return p
}

// Classify applies the decision threshold. The boundary itself is negative.
func Classify(p, threshold float64) bool {
	return p > threshold
}

// RiskLabel names the risk class at the default threshold.
func RiskLabel(p float64) string {
	return RiskLabelAt(p, DefaultThreshold)
}

// RiskLabelAt names the risk class using the same rule as Classify.
func RiskLabelAt(p, threshold float64) string {
	if Classify(p, threshold) {
		return labelHighRisk
	}
	return labelLowRisk
}

// Explain decomposes the linear predictor into per-feature contributions,
// ordered by descending magnitude. Equal magnitudes keep term order.
func Explain(r model.Record, coeffs CoefficientSet) ([]model.Contribution, error) {
	out := make([]model.Contribution, 0, len(coeffs.terms))
	for _, t := range coeffs.terms {
		v, err := featureValue(r, t.Feature)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Contribution{
			Feature: t.Feature,
			Label:   model.FeatureLabel(t.Feature),
			Value:   v * t.Weight,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	return out, nil
}

func featureValue(r model.Record, name string) (float64, error) {
	v, ok := r.Feature(name)
	if !ok {
		return 0, &InvalidRecordError{Index: -1, Field: name, Reason: "is missing"}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &InvalidRecordError{Index: -1, Field: name, Reason: "is not finite"}
	}
	return v, nil
}
