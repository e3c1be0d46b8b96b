package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedRecord is returned when a feed row cannot be parsed.
var ErrMalformedRecord = errors.New("malformed market data record")

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadCSVFile opens path and reads it with LoadCSV.
func LoadCSVFile(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market data file: %w", err)
	}
	defer f.Close()

	return LoadCSV(f)
}

// LoadCSV reads rows of timestamp,symbol,price,volume. The first row is a header and is skipped.
func LoadCSV(r io.Reader) (Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return Series{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	series := make(Series, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		point, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		series = append(series, point)
	}

	return series, nil
}

func parseRecord(record []string) (PricePoint, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return PricePoint{}, err
	}

	symbol := strings.TrimSpace(record[1])
	if symbol == "" {
		return PricePoint{}, fmt.Errorf("%w: empty symbol", ErrMalformedRecord)
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return PricePoint{}, fmt.Errorf("%w: price %q", ErrMalformedRecord, record[2])
	}

	volume, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil {
		return PricePoint{}, fmt.Errorf("%w: volume %q", ErrMalformedRecord, record[3])
	}

	return PricePoint{
		Timestamp: ts,
		Symbol:    symbol,
		Price:     price,
		Volume:    volume,
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformedRecord, raw)
}
