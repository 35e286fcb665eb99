package demand

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/gridheadroom/pkg/models"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

// ParseTimestamp parses the timestamp formats seen in demand exports. Values
// without an offset are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp: %s", s)
}

// ReadCSV reads demand samples from a CSV export with a header row. The time
// column is the first header mentioning "time" or "date"; the current column
// is the first mentioning "current" or "amps". Rows with unparseable values
// are kept as invalid samples so Aggregate drops them.
func ReadCSV(r io.Reader, loc *time.Location) ([]models.DemandSample, error) {
	if loc == nil {
		loc = time.UTC
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	timeCol, currentCol := -1, -1
	for i, col := range header {
		colLower := strings.ToLower(strings.TrimSpace(col))
		switch {
		case timeCol == -1 && (strings.Contains(colLower, "time") || strings.Contains(colLower, "date")):
			timeCol = i
		case currentCol == -1 && (strings.Contains(colLower, "current") || strings.Contains(colLower, "amps")):
			currentCol = i
		}
	}

	if timeCol == -1 || currentCol == -1 {
		return nil, fmt.Errorf("could not find time and current columns in CSV. Header: %v", header)
	}

	var samples []models.DemandSample
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}

		var sample models.DemandSample
		if len(record) > timeCol {
			if ts, err := ParseTimestamp(record[timeCol], loc); err == nil {
				sample.Timestamp = ts
			}
		}
		if len(record) > currentCol {
			if v, err := strconv.ParseFloat(strings.TrimSpace(record[currentCol]), 64); err == nil {
				sample.CurrentAmps = &v
			}
		}
		samples = append(samples, sample)
	}

	return samples, nil
}
