package dataflows

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawBar is one unnormalized vendor row. All fields are strings so the
// builder owns every parsing decision; vendor decoders only have to map
// their shapes onto these fields. AdjClose and Volume may be empty.
type RawBar struct {
	Date     string
	Open     string
	High     string
	Low      string
	Close    string
	AdjClose string
	Volume   string
}

// BuildPricePayload normalizes raw vendor rows into the canonical price
// payload. It never returns an error: rows with unparsable dates or OHLC
// values are dropped individually, duplicate dates keep the last
// occurrence, rows outside [start, end] are dropped even when the vendor
// mis-honors the range, and the output is sorted ascending by date.
func BuildPricePayload(symbol string, start, end time.Time, source string, rows []RawBar, tf Timeframe) PricePayload {
	payload := PricePayload{
		Symbol:    symbol,
		StartDate: start,
		EndDate:   end,
		Source:    source,
		Records:   []Bar{},
		Meta:      PayloadMeta{Timeframe: tf},
	}

	byDate := make(map[time.Time]Bar, len(rows))
	for _, row := range rows {
		bar, err := parseBar(row)
		if err != nil {
			continue
		}
		if bar.Date.Before(truncateDay(start)) || bar.Date.After(truncateDay(end)) {
			continue
		}
		// Later occurrences win: vendors re-emit corrected rows.
		byDate[bar.Date] = bar
	}

	records := make([]Bar, 0, len(byDate))
	for _, bar := range byDate {
		records = append(records, bar)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	payload.Records = records
	payload.Meta.RecordCount = len(records)
	return payload
}

// ErrorPricePayload builds a well-formed payload carrying a vendor failure.
func ErrorPricePayload(symbol string, start, end time.Time, source string, tf Timeframe, errMsg string) PricePayload {
	return PricePayload{
		Symbol:    symbol,
		StartDate: start,
		EndDate:   end,
		Source:    source,
		Records:   []Bar{},
		Meta:      PayloadMeta{Timeframe: tf, Error: errMsg},
	}
}

// BuildNewsPayload normalizes articles into the canonical news payload.
// Articles are ordered by published time descending (newest first).
func BuildNewsPayload(query string, start, end time.Time, source string, articles []NewsArticle) NewsPayload {
	// Sort a copy; the caller's slice is not ours to reorder.
	sorted := make([]NewsArticle, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})
	articles = sorted
	return NewsPayload{
		Query:     query,
		StartDate: start,
		EndDate:   end,
		Source:    source,
		Articles:  articles,
		Meta:      PayloadMeta{RecordCount: len(articles)},
	}
}

// ErrorNewsPayload builds a well-formed news payload carrying a failure.
func ErrorNewsPayload(query string, start, end time.Time, source, errMsg string) NewsPayload {
	return NewsPayload{
		Query:     query,
		StartDate: start,
		EndDate:   end,
		Source:    source,
		Articles:  []NewsArticle{},
		Meta:      PayloadMeta{Error: errMsg},
	}
}

func parseBar(row RawBar) (Bar, error) {
	date, err := ParseDateString(strings.TrimSpace(row.Date))
	if err != nil {
		return Bar{}, err
	}

	open, err := decimal.NewFromString(strings.TrimSpace(row.Open))
	if err != nil {
		return Bar{}, fmt.Errorf("open: %w", err)
	}
	high, err := decimal.NewFromString(strings.TrimSpace(row.High))
	if err != nil {
		return Bar{}, fmt.Errorf("high: %w", err)
	}
	low, err := decimal.NewFromString(strings.TrimSpace(row.Low))
	if err != nil {
		return Bar{}, fmt.Errorf("low: %w", err)
	}
	closePx, err := decimal.NewFromString(strings.TrimSpace(row.Close))
	if err != nil {
		return Bar{}, fmt.Errorf("close: %w", err)
	}

	bar := Bar{
		Date:  truncateDay(date),
		Open:  open,
		High:  high,
		Low:   low,
		Close: closePx,
	}

	if adj := strings.TrimSpace(row.AdjClose); adj != "" {
		if v, err := decimal.NewFromString(adj); err == nil {
			bar.AdjClose = &v
		}
	}
	if vol := strings.TrimSpace(row.Volume); vol != "" {
		// Some vendors emit volume as a float.
		if v, err := strconv.ParseFloat(vol, 64); err == nil {
			bar.Volume = int64(v)
		}
	}

	return bar, nil
}

// ParseCSVBars decodes a delimited OHLCV table into raw rows. The header
// row maps columns by name (case-insensitive); unknown columns are
// ignored. A missing or unreadable header is a malformed-data condition
// reported to the caller so it lands in Meta.Error.
func ParseCSVBars(r io.Reader) ([]RawBar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[normalizeColumn(name)] = i
	}
	if _, ok := cols["close"]; !ok {
		return nil, fmt.Errorf("csv header missing close column")
	}

	var rows []RawBar
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip structurally broken lines, keep the rest.
			continue
		}
		rows = append(rows, RawBar{
			Date:     field(record, cols, "date", "timestamp"),
			Open:     field(record, cols, "open"),
			High:     field(record, cols, "high"),
			Low:      field(record, cols, "low"),
			Close:    field(record, cols, "close"),
			AdjClose: field(record, cols, "adjusted_close", "adj_close"),
			Volume:   field(record, cols, "volume"),
		})
	}
	return rows, nil
}

func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " ", "_")
}

func field(record []string, cols map[string]int, names ...string) string {
	for _, name := range names {
		if idx, ok := cols[name]; ok && idx < len(record) {
			return record[idx]
		}
	}
	return ""
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
