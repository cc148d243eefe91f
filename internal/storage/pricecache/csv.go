package pricecache

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/core"
)

const dateLayout = "2006-01-02"

var header = []string{"Date", "Close"}

// Encode writes bars as a Date,Close CSV.
func Encode(bars []core.PriceBar) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, b := range bars {
		rec := []string{b.Date.Format(dateLayout), strconv.FormatFloat(b.Close, 'f', -1, 64)}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Decode parses a cache file. Extra columns are ignored; rows are returned in file order.
func Decode(data []byte) ([]core.PriceBar, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	head, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	dateCol, closeCol := -1, -1
	for i, name := range head {
		switch name {
		case "Date":
			dateCol = i
		case "Close":
			closeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, fmt.Errorf("header %v lacks Date and Close columns", head)
	}

	var bars []core.PriceBar
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) <= dateCol || len(rec) <= closeCol {
			return nil, fmt.Errorf("line %d: short record", line)
		}
		date, err := parseDate(rec[dateCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		closePx, err := strconv.ParseFloat(rec[closeCol], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: close: %w", line, err)
		}
		bars = append(bars, core.PriceBar{Date: date, Close: closePx})
	}
	return bars, nil
}

// parseDate accepts plain dates and the timestamped form older caches carry.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.UTC().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Merge combines cached and fresh bars. On a shared date the fresh bar wins;
// the result is ascending by date.
func Merge(cached, fresh []core.PriceBar) []core.PriceBar {
	byDay := make(map[time.Time]float64, len(cached)+len(fresh))
	for _, b := range cached {
		byDay[collector.Day(b.Date)] = b.Close
	}
	for _, b := range fresh {
		byDay[collector.Day(b.Date)] = b.Close
	}

	out := make([]core.PriceBar, 0, len(byDay))
	for d, c := range byDay {
		out = append(out, core.PriceBar{Date: d, Close: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
