// Package dataset fetches and parses the labeled heart-disease CSV.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/verte-zerg/heartaudit/internal/model"
)

// ParseResult holds the records kept from a CSV and how many rows were dropped.
type ParseResult struct {
	Records []model.Record
	Dropped int
}

// Parse reads a CSV with a header row naming every feature column. The
// target column is optional; an empty target cell leaves the record
// unlabeled. Rows with the wrong field count, non-numeric or non-finite
// cells, or a target outside {0,1} are dropped and counted.
func Parse(r io.Reader) (ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ParseResult{}, fmt.Errorf("dataset is empty")
	}
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return ParseResult{}, err
	}

	var result ParseResult
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				result.Dropped++
				continue
			}
			return ParseResult{}, fmt.Errorf("failed to read dataset: %w", err)
		}
		if len(row) != len(header) {
			result.Dropped++
			continue
		}
		rec, ok := parseRow(row, cols)
		if !ok {
			result.Dropped++
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

type columns struct {
	features map[string]int
	target   int
}

func mapColumns(header []string) (columns, error) {
	cols := columns{features: make(map[string]int, len(model.FeatureNames)), target: -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if name == model.ColumnTarget {
			cols.target = i
			continue
		}
		cols.features[name] = i
	}
	var missing []string
	for _, name := range model.FeatureNames {
		if _, ok := cols.features[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("dataset header is missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseRow(row []string, cols columns) (model.Record, bool) {
	var rec model.Record
	for _, name := range model.FeatureNames {
		v, ok := parseCell(row[cols.features[name]])
		if !ok {
			return model.Record{}, false
		}
		var err error
		if rec, err = rec.WithFeature(name, v); err != nil {
			return model.Record{}, false
		}
	}
	if cols.target < 0 {
		return rec, true
	}
	raw := strings.TrimSpace(row[cols.target])
	if raw == "" {
		return rec, true
	}
	v, ok := parseCell(raw)
	if !ok || (v != 0 && v != 1) {
		return model.Record{}, false
	}
	return rec.WithLabel(int(v)), true
}

func parseCell(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Labeled returns the records that carry an outcome label and how many
// were skipped.
func Labeled(records []model.Record) ([]model.Record, int) {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if r.Labeled() {
			out = append(out, r)
		}
	}
	return out, len(records) - len(out)
}
