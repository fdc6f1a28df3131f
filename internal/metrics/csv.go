package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"telemon/internal/model"
)

// WriteCSV writes points with a timestamp column followed by columns, in
// the given order.
func WriteCSV(w io.Writer, columns []string, points []model.Point) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header(columns)); err != nil {
		return err
	}
	return writeRecords(writer, columns, points)
}

// AppendCSV appends points to the file at path, writing the header only when
// the file is new or empty.
func AppendCSV(path string, columns []string, points []model.Point) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(header(columns)); err != nil {
			return err
		}
	}
	if err := writeRecords(writer, columns, points); err != nil {
		return err
	}
	return file.Sync()
}

func header(columns []string) []string {
	return append([]string{model.TimestampColumn}, columns...)
}

func writeRecords(writer *csv.Writer, columns []string, points []model.Point) error {
	for _, p := range points {
		record := make([]string, 0, len(columns)+1)
		record = append(record, p.Timestamp.UTC().Format(time.RFC3339Nano))
		for _, col := range columns {
			record = append(record, strconv.FormatFloat(p.Value(col), 'f', 3, 64))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
