package stats

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/scoring"
)

// Group tags a record's partition membership.
type Group int

const (
	// Unmatched records belong to neither group and count only toward overall.
	Unmatched Group = iota
	GroupA
	GroupB
)

// GroupSelector assigns records to one of two named groups.
type GroupSelector struct {
	NameA  string
	NameB  string
	Assign func(model.Record) Group
}

// SexSelector puts sex==1 in group A ("male") and sex==0 in group B ("female").
func SexSelector() GroupSelector {
	return GroupSelector{
		NameA: "male",
		NameB: "female",
		Assign: func(r model.Record) Group {
			switch r.Sex {
			case 1:
				return GroupA
			case 0:
				return GroupB
			default:
				return Unmatched
			}
		},
	}
}

// Partitioned is the tagged result of splitting records by a selector.
type Partitioned struct {
	A         []model.Record
	B         []model.Record
	Unmatched []model.Record
}

// Partition splits records by sel, keeping input order within each bucket.
func Partition(records []model.Record, sel GroupSelector) Partitioned {
	var out Partitioned
	if sel.Assign == nil {
		out.Unmatched = append(out.Unmatched, records...)
		return out
	}
	for _, r := range records {
		switch sel.Assign(r) {
		case GroupA:
			out.A = append(out.A, r)
		case GroupB:
			out.B = append(out.B, r)
		default:
			out.Unmatched = append(out.Unmatched, r)
		}
	}
	return out
}

// BuildReport computes overall and per-group metrics at the default threshold.
func BuildReport(records []model.Record, coeffs scoring.CoefficientSet, sel GroupSelector) (model.FairnessReport, error) {
	return BuildReportAt(records, coeffs, sel, scoring.DefaultThreshold)
}

// BuildReportAt computes overall and per-group metrics at threshold.
// Disparity is group A minus group B.
func BuildReportAt(records []model.Record, coeffs scoring.CoefficientSet, sel GroupSelector, threshold float64) (model.FairnessReport, error) {
	if sel.Assign == nil {
		return model.FairnessReport{}, fmt.Errorf("group selector has no assign function")
	}
	parts := Partition(records, sel)

	slices := [3][]model.Record{records, parts.A, parts.B}
	var results [3]model.Metrics
	var errs [3]error
	var g errgroup.Group
	for i := range slices {
		i := i
		g.Go(func() error {
			results[i], errs[i] = ComputeMetricsAt(slices[i], coeffs, threshold)
			return errs[i]
		})
	}
	if err := g.Wait(); err != nil {
		// Overall covers every record, so its error carries the input index.
		if errs[0] != nil {
			return model.FairnessReport{}, errs[0]
		}
		return model.FairnessReport{}, err
	}
	return assembleReport(results[0], results[1], results[2], sel, len(parts.Unmatched), threshold), nil
}

func assembleReport(overall, a, b model.Metrics, sel GroupSelector, unmatched int, threshold float64) model.FairnessReport {
	return model.FairnessReport{
		Threshold: threshold,
		Overall:   overall,
		GroupA:    model.GroupMetrics{Name: sel.NameA, Metrics: a},
		GroupB:    model.GroupMetrics{Name: sel.NameB, Metrics: b},
		Unmatched: unmatched,
		Disparity: model.Disparity{
			RecallGap:   a.Recall - b.Recall,
			AccuracyGap: a.Accuracy - b.Accuracy,
		},
	}
}
