package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ProductionRecord is one row of district crop production history.
type ProductionRecord struct {
	State      string
	District   string
	Year       int
	Season     string
	Crop       string
	Area       float64
	Production float64
}

var productionColumns = []string{"State_Name", "District_Name", "Crop_Year", "Season", "Crop", "Area", "Production"}

// LoadProductionCSV reads production history from disk.
func LoadProductionCSV(path string) ([]ProductionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open production data: %w", err)
	}
	defer f.Close()

	recs, err := ReadProductionCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// ReadProductionCSV parses the crop production table:
//
//	State_Name,District_Name,Crop_Year,Season,Crop,Area,Production
//	Andhra Pradesh,ANANTAPUR,1997,Kharif     ,Rice,222,481
//
// Season values are trimmed (the published table pads them with spaces).
// Empty Area or Production cells read as zero; rows without a crop name are
// skipped.
func ReadProductionCSV(r io.Reader) ([]ProductionRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty production data")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	colIdx := map[string]int{}
	for i, h := range header {
		colIdx[strings.ToLower(cleanHeader(h))] = i
	}
	for _, c := range []string{"State_Name", "District_Name", "Crop"} {
		if _, ok := colIdx[strings.ToLower(c)]; !ok {
			return nil, fmt.Errorf("missing %q column", c)
		}
	}

	var recs []ProductionRecord //nolint:prealloc // size depends on CSV file contents
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := reader.FieldPos(0)

		rec := ProductionRecord{
			State:    get(row, colIdx, productionColumns[0]),
			District: get(row, colIdx, productionColumns[1]),
			Season:   get(row, colIdx, productionColumns[3]),
			Crop:     get(row, colIdx, productionColumns[4]),
		}
		if rec.Crop == "" {
			continue
		}
		if rec.State == "" || rec.District == "" {
			return nil, fmt.Errorf("line %d: missing state or district", line)
		}
		if rec.Year, err = parseInt(get(row, colIdx, productionColumns[2])); err != nil {
			return nil, fmt.Errorf("line %d: Crop_Year: %w", line, err)
		}
		if rec.Area, err = parseFloat(get(row, colIdx, productionColumns[5])); err != nil {
			return nil, fmt.Errorf("line %d: Area: %w", line, err)
		}
		if rec.Production, err = parseFloat(get(row, colIdx, productionColumns[6])); err != nil {
			return nil, fmt.Errorf("line %d: Production: %w", line, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[strings.ToLower(col)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseFloat(s string) (float64, error) {
	if s == "" || s == "=" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
