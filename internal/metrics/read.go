package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"telemon/internal/model"
)

// ReadCSV loads points written by WriteCSV or AppendCSV. It returns the
// aggregate column names found in the header.
func ReadCSV(path string) ([]string, []model.Point, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return readCSV(file)
}

func readCSV(r io.Reader) ([]string, []model.Point, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	if len(records[0]) == 0 || records[0][0] != model.TimestampColumn {
		return nil, nil, fmt.Errorf("missing %q header", model.TimestampColumn)
	}
	columns := records[0][1:]

	points := make([]model.Point, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		rec := records[i]
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid timestamp at line %d: %w", i+1, err)
		}
		values := make(map[string]float64, len(columns))
		for j, col := range columns {
			v, err := strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid %s at line %d: %w", col, i+1, err)
			}
			values[col] = v
		}
		points = append(points, model.Point{Timestamp: ts, Values: values})
	}

	return columns, points, nil
}
