// Package dataset loads the CSV inputs of the crop advisor: the labelled
// soil/climate training table and the district crop production history.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

// Column names recognised in the training table. Every other column is
// treated as a numeric feature, in file order.
const (
	labelColumn = "label"
)

var soilColumns = []string{"soil", "soil_type", "soiltype"}

// LoadTrainingCSV reads a training table from disk.
func LoadTrainingCSV(path string) (domain.Schema, []domain.CropRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Schema{}, nil, fmt.Errorf("open training data: %w", err)
	}
	defer f.Close()

	schema, recs, err := ReadTrainingCSV(f)
	if err != nil {
		return domain.Schema{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	return schema, recs, nil
}

// ReadTrainingCSV parses a training table such as Crop_recommendation.csv:
//
//	N,P,K,temperature,humidity,ph,rainfall,label
//	90,42,43,20.87,82.00,6.50,202.93,rice
//
// A "label" column is required. An optional soil column ("soil" or
// "soil_type") carries the soil category.
func ReadTrainingCSV(r io.Reader) (domain.Schema, []domain.CropRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Schema{}, nil, errors.New("empty training data")
		}
		return domain.Schema{}, nil, fmt.Errorf("read header: %w", err)
	}

	labelIdx, soilIdx := -1, -1
	var schema domain.Schema
	var numericIdx []int
	for i, h := range header {
		name := cleanHeader(h)
		switch {
		case strings.EqualFold(name, labelColumn):
			labelIdx = i
		case isSoilColumn(name):
			soilIdx = i
			schema.HasSoil = true
		case name == "":
			return domain.Schema{}, nil, fmt.Errorf("column %d has an empty name", i+1)
		default:
			schema.Numeric = append(schema.Numeric, name)
			numericIdx = append(numericIdx, i)
		}
	}
	if labelIdx < 0 {
		return domain.Schema{}, nil, errors.New(`missing "label" column`)
	}

	var recs []domain.CropRecord //nolint:prealloc // size depends on CSV file contents
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Schema{}, nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := reader.FieldPos(0)

		features := make(map[string]float64, len(numericIdx))
		for j, col := range numericIdx {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil {
				return domain.Schema{}, nil, fmt.Errorf("line %d: column %q: %w", line, schema.Numeric[j], err)
			}
			features[schema.Numeric[j]] = v
		}

		rec := domain.CropRecord{
			Features: features,
			Label:    strings.TrimSpace(row[labelIdx]),
		}
		if rec.Label == "" {
			return domain.Schema{}, nil, fmt.Errorf("line %d: empty label", line)
		}
		if soilIdx >= 0 {
			rec.Soil = strings.TrimSpace(row[soilIdx])
			if rec.Soil == "" {
				return domain.Schema{}, nil, fmt.Errorf("line %d: empty soil category", line)
			}
		}
		recs = append(recs, rec)
	}

	if len(recs) == 0 {
		return domain.Schema{}, nil, errors.New("no data rows")
	}
	return schema, recs, nil
}

func cleanHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
}

func isSoilColumn(name string) bool {
	for _, c := range soilColumns {
		if strings.EqualFold(name, c) {
			return true
		}
	}
	return false
}
