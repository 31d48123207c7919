package stats

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/scoring"
)

// DefaultGapAlert is the recall gap above which a disparity notice is shown.
const DefaultGapAlert = 0.05

// MitigationHints lists remedies printed with a disparity notice.
var MitigationHints = []string{
	"Collect more representative data for the under-served group.",
	"Apply fairness constraints when the model is retrained.",
	"Use a separate decision threshold for the under-served group (see `heartaudit sweep`).",
}

// GapExceeded reports whether the absolute recall gap is above limit.
func GapExceeded(report model.FairnessReport, limit float64) bool {
	return math.Abs(report.Disparity.RecallGap) > limit
}

// RenderPrediction prints the probability and risk label for one case.
func RenderPrediction(w io.Writer, p, threshold float64) error {
	if _, err := fmt.Fprintf(w, "Risk: %s (%s)\n", Percent(p), scoring.RiskLabelAt(p, threshold)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Threshold: %s\n", Percent(threshold))
	return err
}

// RenderContributions prints the top contributions; top <= 0 prints all.
func RenderContributions(w io.Writer, contribs []model.Contribution, top int) error {
	if len(contribs) == 0 {
		_, err := fmt.Fprintln(w, "No contributions.")
		return err
	}
	if top > 0 && len(contribs) > top {
		contribs = contribs[:top]
	}
	rows := make([][]string, 0, len(contribs))
	for _, c := range contribs {
		direction := "raises risk"
		if c.Value < 0 {
			direction = "lowers risk"
		}
		rows = append(rows, []string{c.Label, fmt.Sprintf("%+.2f", c.Value), direction})
	}
	if _, err := fmt.Fprintln(w, "Key Factors"); err != nil {
		return err
	}
	for _, line := range formatTable([]string{"Feature", "Impact", ""}, rows, map[int]bool{1: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderReport prints overall and per-group metrics, the disparity and,
// when the recall gap exceeds gapAlert, a disparity notice.
func RenderReport(w io.Writer, report model.FairnessReport, gapAlert float64) error {
	if report.Overall.Count == 0 {
		_, err := fmt.Fprintln(w, "No labeled records loaded.")
		return err
	}
	if _, err := fmt.Fprintf(w, "Fairness Audit (threshold %s)\n\n", Percent(report.Threshold)); err != nil {
		return err
	}

	rows := [][]string{
		metricsRow("overall", report.Overall),
		metricsRow(report.GroupA.Name, report.GroupA.Metrics),
		metricsRow(report.GroupB.Name, report.GroupB.Metrics),
	}
	headers := []string{"Group", "Count", "Accuracy", "Recall", "Precision", "Specificity"}
	for _, line := range formatTable(headers, rows, map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if report.Unmatched > 0 {
		if _, err := fmt.Fprintf(w, "(%d records in neither group, counted in overall only)\n", report.Unmatched); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "\nRecall gap (%s - %s): %s\n", report.GroupA.Name, report.GroupB.Name, SignedPercent(report.Disparity.RecallGap)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Accuracy gap: %s\n", SignedPercent(report.Disparity.AccuracyGap)); err != nil {
		return err
	}
	if !GapExceeded(report, gapAlert) {
		return nil
	}
	return renderDisparityNotice(w, report)
}

func renderDisparityNotice(w io.Writer, report model.FairnessReport) error {
	missed := report.GroupB
	if report.Disparity.RecallGap < 0 {
		missed = report.GroupA
	}
	c := missed.Metrics.Confusion
	if c.TP+c.FN == 0 {
		_, err := fmt.Fprintf(w, "\nRecall gap not comparable: the %s group has no positive cases.\n", missed.Name)
		return err
	}
	if _, err := fmt.Fprintf(w, "\nDisparity detected: the model misses more positive %s cases (false negatives).\n", missed.Name); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "Mitigation:"); err != nil {
		return err
	}
	for i, hint := range MitigationHints {
		if _, err := fmt.Fprintf(w, "  %d. %s\n", i+1, hint); err != nil {
			return err
		}
	}
	return nil
}

func metricsRow(name string, m model.Metrics) []string {
	return []string{
		name,
		strconv.Itoa(m.Count),
		Percent(m.Accuracy),
		Percent(m.Recall),
		Percent(m.Precision),
		Percent(m.Specificity),
	}
}

// RecordHeaders are the columns shown by the dataset explorer.
var RecordHeaders = []string{"Age", "Sex", "Chest Pain", "BP", "Chol", "Sugar", "Max HR", "Angina", "Outcome"}

// RecordCells renders one record with human-readable labels.
func RecordCells(r model.Record) []string {
	sex := "F"
	if r.Sex == 1 {
		sex = "M"
	}
	sugar := "<120"
	if r.Fbs == 1 {
		sugar = ">120"
	}
	angina := "No"
	if r.Exang == 1 {
		angina = "Yes"
	}
	outcome := "-"
	if label, ok := r.Label(); ok {
		outcome = "No Disease"
		if label == 1 {
			outcome = "Disease"
		}
	}
	return []string{
		formatNumber(r.Age),
		sex,
		formatNumber(r.CP),
		formatNumber(r.Trestbps),
		formatNumber(r.Chol),
		sugar,
		formatNumber(r.Thalach),
		angina,
		outcome,
	}
}

// RenderRecords prints the first n records; n <= 0 prints all.
func RenderRecords(w io.Writer, records []model.Record, n int) error {
	if _, err := fmt.Fprintf(w, "Records loaded: %d\n", len(records)); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, RecordCells(r))
	}
	for _, line := range formatTable(RecordHeaders, rows, map[int]bool{0: true, 2: true, 3: true, 4: true, 6: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderSweep prints recall per group across thresholds as a chart and a table.
func RenderSweep(w io.Writer, points []SweepPoint, totalWidth, height int, useColor bool) error {
	if len(points) == 0 {
		_, err := fmt.Fprintln(w, "No thresholds to sweep.")
		return err
	}
	series := SweepSeries(points)
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	xLabel := fmt.Sprintf("threshold %.2f -> %.2f", points[0].Threshold, points[len(points)-1].Threshold)
	if err := PlotRates(w, "Recall by Threshold", xLabel, series, width, height, useColor); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}

	first := points[0].Report
	headers := []string{"Threshold", "Accuracy", first.GroupA.Name + " recall", first.GroupB.Name + " recall", "Gap"}
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			fmt.Sprintf("%.2f", p.Threshold),
			Percent(p.Report.Overall.Accuracy),
			Percent(p.Report.GroupA.Metrics.Recall),
			Percent(p.Report.GroupB.Metrics.Recall),
			SignedPercent(p.Report.Disparity.RecallGap),
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// SweepSeries extracts per-group recall and overall accuracy curves.
func SweepSeries(points []SweepPoint) []Series {
	if len(points) == 0 {
		return nil
	}
	a := make([]float64, len(points))
	b := make([]float64, len(points))
	acc := make([]float64, len(points))
	for i, p := range points {
		a[i] = p.Report.GroupA.Metrics.Recall
		b[i] = p.Report.GroupB.Metrics.Recall
		acc[i] = p.Report.Overall.Accuracy
	}
	first := points[0].Report
	return []Series{
		{Name: first.GroupA.Name + " recall", Values: a},
		{Name: first.GroupB.Name + " recall", Values: b},
		{Name: "accuracy", Values: acc},
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RenderSnapshots lists cached dataset snapshots.
func RenderSnapshots(w io.Writer, snaps []model.Snapshot) error {
	if len(snaps) == 0 {
		_, err := fmt.Fprintln(w, "No cached snapshots.")
		return err
	}
	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, []string{
			s.FetchedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(s.RecordCount),
			strconv.Itoa(s.Dropped),
			s.ID,
			s.Source,
		})
	}
	for _, line := range formatTable([]string{"Fetched", "Records", "Dropped", "ID", "Source"}, rows, map[int]bool{1: true, 2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
