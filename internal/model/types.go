// Package model defines shared data structures.
package model

import (
	"fmt"
	"math"
	"time"
)

// Canonical feature names, in dataset column order.
const (
	FeatureAge      = "age"
	FeatureSex      = "sex"
	FeatureCP       = "cp"
	FeatureTrestbps = "trestbps"
	FeatureChol     = "chol"
	FeatureFbs      = "fbs"
	FeatureRestecg  = "restecg"
	FeatureThalach  = "thalach"
	FeatureExang    = "exang"
	FeatureOldpeak  = "oldpeak"
	FeatureSlope    = "slope"
	FeatureCA       = "ca"
	FeatureThal     = "thal"

	// ColumnTarget is the outcome label column.
	ColumnTarget = "target"
)

// FeatureNames lists every record feature in canonical order.
var FeatureNames = []string{
	FeatureAge,
	FeatureSex,
	FeatureCP,
	FeatureTrestbps,
	FeatureChol,
	FeatureFbs,
	FeatureRestecg,
	FeatureThalach,
	FeatureExang,
	FeatureOldpeak,
	FeatureSlope,
	FeatureCA,
	FeatureThal,
}

var featureLabels = map[string]string{
	FeatureAge:      "Age",
	FeatureSex:      "Sex",
	FeatureCP:       "Chest Pain",
	FeatureTrestbps: "Resting BP",
	FeatureChol:     "Cholesterol",
	FeatureFbs:      "Fasting Sugar",
	FeatureRestecg:  "Resting ECG",
	FeatureThalach:  "Max Heart Rate",
	FeatureExang:    "Exercise Angina",
	FeatureOldpeak:  "ST Depression",
	FeatureSlope:    "ST Slope",
	FeatureCA:       "Vessels",
	FeatureThal:     "Thalassemia",
}

// FeatureLabel returns the display name for a feature, or the name itself.
func FeatureLabel(name string) string {
	if label, ok := featureLabels[name]; ok {
		return label
	}
	return name
}

// Record is one patient case. Target is nil for unlabeled records.
type Record struct {
	Age      float64 `json:"age" yaml:"age"`
	Sex      float64 `json:"sex" yaml:"sex"`
	CP       float64 `json:"cp" yaml:"cp"`
	Trestbps float64 `json:"trestbps" yaml:"trestbps"`
	Chol     float64 `json:"chol" yaml:"chol"`
	Fbs      float64 `json:"fbs" yaml:"fbs"`
	Restecg  float64 `json:"restecg" yaml:"restecg"`
	Thalach  float64 `json:"thalach" yaml:"thalach"`
	Exang    float64 `json:"exang" yaml:"exang"`
	Oldpeak  float64 `json:"oldpeak" yaml:"oldpeak"`
	Slope    float64 `json:"slope" yaml:"slope"`
	CA       float64 `json:"ca" yaml:"ca"`
	Thal     float64 `json:"thal" yaml:"thal"`
	Target   *int    `json:"target,omitempty" yaml:"target,omitempty"`
}

// DefaultPatient returns the reference case used by the predict command.
func DefaultPatient() Record {
	return Record{
		Age:      55,
		Sex:      1,
		CP:       1,
		Trestbps: 130,
		Chol:     240,
		Fbs:      0,
		Restecg:  1,
		Thalach:  150,
		Exang:    0,
		Oldpeak:  1.0,
		Slope:    1,
		CA:       0,
		Thal:     2,
	}
}

// Feature returns the value of a named feature.
func (r Record) Feature(name string) (float64, bool) {
	switch name {
	case FeatureAge:
		return r.Age, true
	case FeatureSex:
		return r.Sex, true
	case FeatureCP:
		return r.CP, true
	case FeatureTrestbps:
		return r.Trestbps, true
	case FeatureChol:
		return r.Chol, true
	case FeatureFbs:
		return r.Fbs, true
	case FeatureRestecg:
		return r.Restecg, true
	case FeatureThalach:
		return r.Thalach, true
	case FeatureExang:
		return r.Exang, true
	case FeatureOldpeak:
		return r.Oldpeak, true
	case FeatureSlope:
		return r.Slope, true
	case FeatureCA:
		return r.CA, true
	case FeatureThal:
		return r.Thal, true
	default:
		return 0, false
	}
}

// WithFeature returns a copy of r with the named feature replaced.
func (r Record) WithFeature(name string, value float64) (Record, error) {
	switch name {
	case FeatureAge:
		r.Age = value
	case FeatureSex:
		r.Sex = value
	case FeatureCP:
		r.CP = value
	case FeatureTrestbps:
		r.Trestbps = value
	case FeatureChol:
		r.Chol = value
	case FeatureFbs:
		r.Fbs = value
	case FeatureRestecg:
		r.Restecg = value
	case FeatureThalach:
		r.Thalach = value
	case FeatureExang:
		r.Exang = value
	case FeatureOldpeak:
		r.Oldpeak = value
	case FeatureSlope:
		r.Slope = value
	case FeatureCA:
		r.CA = value
	case FeatureThal:
		r.Thal = value
	default:
		return r, fmt.Errorf("unknown feature %q", name)
	}
	return r, nil
}

// Labeled reports whether the record carries an outcome label.
func (r Record) Labeled() bool {
	return r.Target != nil
}

// Label returns the outcome label and whether it is present.
func (r Record) Label() (int, bool) {
	if r.Target == nil {
		return 0, false
	}
	return *r.Target, true
}

// WithLabel returns a copy of r carrying the given label.
func (r Record) WithLabel(label int) Record {
	r.Target = &label
	return r
}

// Validate checks that every feature is finite and the binary fields are 0 or 1.
func (r Record) Validate() error {
	for _, name := range FeatureNames {
		v, _ := r.Feature(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite", name)
		}
	}
	if r.Sex != 0 && r.Sex != 1 {
		return fmt.Errorf("sex must be 0 or 1, got %v", r.Sex)
	}
	if r.Target != nil && *r.Target != 0 && *r.Target != 1 {
		return fmt.Errorf("target must be 0 or 1, got %d", *r.Target)
	}
	return nil
}

// Contribution is one feature's signed share of the linear predictor.
type Contribution struct {
	Feature string  `json:"feature" yaml:"feature"`
	Label   string  `json:"label" yaml:"label"`
	Value   float64 `json:"value" yaml:"value"`
}

// Confusion holds the 2x2 confusion-matrix counts.
type Confusion struct {
	TP int `json:"tp" yaml:"tp"`
	FP int `json:"fp" yaml:"fp"`
	TN int `json:"tn" yaml:"tn"`
	FN int `json:"fn" yaml:"fn"`
}

// Total returns the number of cases counted.
func (c Confusion) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

// Add merges two partial counts.
func (c Confusion) Add(o Confusion) Confusion {
	return Confusion{
		TP: c.TP + o.TP,
		FP: c.FP + o.FP,
		TN: c.TN + o.TN,
		FN: c.FN + o.FN,
	}
}

// Metrics summarizes classifier performance over one population slice.
type Metrics struct {
	Accuracy    float64   `json:"accuracy" yaml:"accuracy"`
	Recall      float64   `json:"recall" yaml:"recall"`
	Precision   float64   `json:"precision" yaml:"precision"`
	Specificity float64   `json:"specificity" yaml:"specificity"`
	Count       int       `json:"count" yaml:"count"`
	Confusion   Confusion `json:"confusion" yaml:"confusion"`
}

// GroupMetrics is Metrics tagged with a group name.
type GroupMetrics struct {
	Name    string  `json:"name" yaml:"name"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
}

// Disparity is the signed difference group A minus group B.
type Disparity struct {
	RecallGap   float64 `json:"recall_gap" yaml:"recall_gap"`
	AccuracyGap float64 `json:"accuracy_gap" yaml:"accuracy_gap"`
}

// FairnessReport compares model performance across two groups.
type FairnessReport struct {
	Threshold float64      `json:"threshold" yaml:"threshold"`
	Overall   Metrics      `json:"overall" yaml:"overall"`
	GroupA    GroupMetrics `json:"group_a" yaml:"group_a"`
	GroupB    GroupMetrics `json:"group_b" yaml:"group_b"`
	Unmatched int          `json:"unmatched" yaml:"unmatched"`
	Disparity Disparity    `json:"disparity" yaml:"disparity"`
}

// Snapshot describes one cached copy of a fetched dataset.
type Snapshot struct {
	ID          string    `json:"id" yaml:"id"`
	Source      string    `json:"source" yaml:"source"`
	FetchedAt   time.Time `json:"fetched_at" yaml:"fetched_at"`
	RecordCount int       `json:"record_count" yaml:"record_count"`
	Dropped     int       `json:"dropped" yaml:"dropped"`
}
