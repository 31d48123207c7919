// Package scoring implements the linear risk scorer and its attribution.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/heartaudit/internal/model"
)

const interceptKey = "intercept"

// Term is one weighted feature of the linear predictor.
type Term struct {
	Feature string  `json:"feature" yaml:"feature" toml:"feature"`
	Weight  float64 `json:"weight" yaml:"weight" toml:"weight"`
}

// CoefficientSet is an immutable intercept plus ordered feature weights.
// The zero value scores every record at the logistic midpoint.
type CoefficientSet struct {
	intercept float64
	terms     []Term
}

// NewCoefficientSet builds a coefficient set. Known features keep canonical
// dataset order; any other names follow in lexical order.
func NewCoefficientSet(intercept float64, weights map[string]float64) (CoefficientSet, error) {
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return CoefficientSet{}, fmt.Errorf("intercept is not finite")
	}
	known := make(map[string]struct{}, len(model.FeatureNames))
	for _, name := range model.FeatureNames {
		known[name] = struct{}{}
	}

	terms := make([]Term, 0, len(weights))
	for _, name := range model.FeatureNames {
		if w, ok := weights[name]; ok {
			terms = append(terms, Term{Feature: name, Weight: w})
		}
	}
	var extra []string
	for name := range weights {
		if _, ok := known[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		terms = append(terms, Term{Feature: name, Weight: weights[name]})
	}

	for _, t := range terms {
		switch {
		case strings.TrimSpace(t.Feature) == "":
			return CoefficientSet{}, fmt.Errorf("feature name is empty")
		case strings.EqualFold(t.Feature, interceptKey):
			return CoefficientSet{}, fmt.Errorf("intercept must not be listed as a feature weight")
		case math.IsNaN(t.Weight) || math.IsInf(t.Weight, 0):
			return CoefficientSet{}, fmt.Errorf("weight for %s is not finite", t.Feature)
		}
	}
	return CoefficientSet{intercept: intercept, terms: terms}, nil
}

// DefaultCoefficients returns the approximate logistic-regression weights for
// the UCI heart disease data.
func DefaultCoefficients() CoefficientSet {
	cs, err := NewCoefficientSet(-3.5, DefaultWeights())
	if err != nil {
		panic(err)
	}
	return cs
}

// DefaultWeights returns a fresh copy of the default feature weights.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		model.FeatureAge:      0.03,
		model.FeatureSex:      1.2,
		model.FeatureCP:       0.8,
		model.FeatureTrestbps: 0.015,
		model.FeatureChol:     0.005,
		model.FeatureFbs:      0.1,
		model.FeatureRestecg:  0.3,
		model.FeatureThalach:  -0.02,
		model.FeatureExang:    0.9,
		model.FeatureOldpeak:  0.5,
		model.FeatureSlope:    0.4,
		model.FeatureCA:       0.8,
		model.FeatureThal:     0.7,
	}
}

// Intercept returns the constant term.
func (c CoefficientSet) Intercept() float64 {
	return c.intercept
}

// Terms returns a copy of the weighted features in evaluation order.
func (c CoefficientSet) Terms() []Term {
	out := make([]Term, len(c.terms))
	copy(out, c.terms)
	return out
}

// Weight returns the weight for a feature.
func (c CoefficientSet) Weight(feature string) (float64, bool) {
	for _, t := range c.terms {
		if t.Feature == feature {
			return t.Weight, true
		}
	}
	return 0, false
}

// Len returns the number of weighted features.
func (c CoefficientSet) Len() int {
	return len(c.terms)
}

// Weights returns the feature weights as a map.
func (c CoefficientSet) Weights() map[string]float64 {
	out := make(map[string]float64, len(c.terms))
	for _, t := range c.terms {
		out[t.Feature] = t.Weight
	}
	return out
}
