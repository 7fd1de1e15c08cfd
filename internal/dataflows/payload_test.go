package dataflows

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBuildPricePayload_SortsAndCounts(t *testing.T) {
	rows := []RawBar{
		{Date: "2024-01-03", Open: "102", High: "104", Low: "101", Close: "103", Volume: "1200"},
		{Date: "2024-01-01", Open: "100", High: "101", Low: "99", Close: "100.5", Volume: "1000"},
		{Date: "2024-01-02", Open: "100.5", High: "103", Low: "100", Close: "102", Volume: "1100"},
	}

	payload := BuildPricePayload("AAPL", day("2024-01-01"), day("2024-01-31"), "test", rows, TimeframeDaily)

	require.Len(t, payload.Records, 3)
	assert.Equal(t, len(payload.Records), payload.Meta.RecordCount)
	assert.True(t, payload.OK())
	assert.Equal(t, day("2024-01-01"), payload.Records[0].Date)
	assert.Equal(t, day("2024-01-02"), payload.Records[1].Date)
	assert.Equal(t, day("2024-01-03"), payload.Records[2].Date)
	assert.Equal(t, int64(1000), payload.Records[0].Volume)
}

func TestBuildPricePayload_DuplicateDatesKeepLast(t *testing.T) {
	rows := []RawBar{
		{Date: "2024-01-02", Open: "100", High: "101", Low: "99", Close: "100"},
		{Date: "2024-01-02", Open: "100", High: "101", Low: "99", Close: "105"},
	}

	payload := BuildPricePayload("MSFT", day("2024-01-01"), day("2024-01-31"), "test", rows, TimeframeDaily)

	require.Len(t, payload.Records, 1)
	assert.Equal(t, 1, payload.Meta.RecordCount)
	assert.Equal(t, "105", payload.Records[0].Close.String())
}

func TestBuildPricePayload_DropsOutOfRangeRows(t *testing.T) {
	rows := []RawBar{
		{Date: "2023-12-29", Open: "90", High: "91", Low: "89", Close: "90"},
		{Date: "2024-01-15", Open: "100", High: "101", Low: "99", Close: "100"},
		{Date: "2024-02-05", Open: "110", High: "111", Low: "109", Close: "110"},
	}

	payload := BuildPricePayload("TSLA", day("2024-01-01"), day("2024-01-31"), "test", rows, TimeframeDaily)

	require.Len(t, payload.Records, 1)
	assert.Equal(t, day("2024-01-15"), payload.Records[0].Date)
}

func TestBuildPricePayload_DropsUnparsableRows(t *testing.T) {
	rows := []RawBar{
		{Date: "not-a-date", Open: "100", High: "101", Low: "99", Close: "100"},
		{Date: "2024-01-02", Open: "bad", High: "101", Low: "99", Close: "100"},
		{Date: "2024-01-03", Open: "100", High: "101", Low: "99", Close: "100"},
	}

	payload := BuildPricePayload("NVDA", day("2024-01-01"), day("2024-01-31"), "test", rows, TimeframeDaily)

	require.Len(t, payload.Records, 1)
	assert.Equal(t, day("2024-01-03"), payload.Records[0].Date)
}

func TestBuildPricePayload_EmptyIsSuccess(t *testing.T) {
	payload := BuildPricePayload("AAPL", day("2024-01-01"), day("2024-01-31"), "test", nil, TimeframeDaily)

	assert.True(t, payload.OK())
	assert.True(t, payload.Empty())
	assert.NotNil(t, payload.Records)
	assert.Equal(t, 0, payload.Meta.RecordCount)
}

func TestBuildPricePayload_OptionalFields(t *testing.T) {
	rows := []RawBar{
		{Date: "2024-01-02", Open: "100", High: "101", Low: "99", Close: "100", AdjClose: "98.5", Volume: "1234.0"},
		{Date: "2024-01-03", Open: "100", High: "101", Low: "99", Close: "100"},
	}

	payload := BuildPricePayload("KO", day("2024-01-01"), day("2024-01-31"), "test", rows, TimeframeDaily)

	require.Len(t, payload.Records, 2)
	require.NotNil(t, payload.Records[0].AdjClose)
	assert.Equal(t, "98.5", payload.Records[0].AdjClose.String())
	assert.Equal(t, int64(1234), payload.Records[0].Volume)
	assert.Nil(t, payload.Records[1].AdjClose)
}

func TestErrorPricePayload_WellFormed(t *testing.T) {
	payload := ErrorPricePayload("AAPL", day("2024-01-01"), day("2024-01-31"), "test", TimeframeDaily, "upstream down")

	assert.False(t, payload.OK())
	assert.NotNil(t, payload.Records)
	assert.Empty(t, payload.Records)
	assert.Equal(t, 0, payload.Meta.RecordCount)
	assert.Equal(t, "upstream down", payload.Meta.Error)
}

func TestBuildNewsPayload_NewestFirst(t *testing.T) {
	articles := []NewsArticle{
		{Title: "old", PublishedAt: day("2024-01-01")},
		{Title: "new", PublishedAt: day("2024-01-10")},
		{Title: "mid", PublishedAt: day("2024-01-05")},
	}

	payload := BuildNewsPayload("AAPL", day("2024-01-01"), day("2024-01-31"), "test", articles)

	require.Len(t, payload.Articles, 3)
	assert.Equal(t, 3, payload.Meta.RecordCount)
	assert.Equal(t, "new", payload.Articles[0].Title)
	assert.Equal(t, "mid", payload.Articles[1].Title)
	assert.Equal(t, "old", payload.Articles[2].Title)
}

func TestBuildNewsPayload_DoesNotReorderCallerSlice(t *testing.T) {
	articles := []NewsArticle{
		{Title: "old", PublishedAt: day("2024-01-01")},
		{Title: "new", PublishedAt: day("2024-01-10")},
	}

	payload := BuildNewsPayload("AAPL", day("2024-01-01"), day("2024-01-31"), "test", articles)

	assert.Equal(t, "new", payload.Articles[0].Title)
	assert.Equal(t, "old", articles[0].Title, "caller's slice must keep its original order")
	assert.Equal(t, "new", articles[1].Title)
}

func TestBuildNewsPayload_NilArticles(t *testing.T) {
	payload := BuildNewsPayload("AAPL", day("2024-01-01"), day("2024-01-31"), "test", nil)

	assert.NotNil(t, payload.Articles)
	assert.True(t, payload.OK())
	assert.True(t, payload.Empty())
}

func TestParseCSVBars(t *testing.T) {
	csvData := strings.Join([]string{
		"timestamp,open,high,low,close,adjusted_close,volume",
		"2024-01-02,100,101,99,100.5,100.1,5000",
		"2024-01-03,100.5,102,100,101.5,101.1,6000",
	}, "\n")

	rows, err := ParseCSVBars(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-02", rows[0].Date)
	assert.Equal(t, "100.5", rows[0].Close)
	assert.Equal(t, "100.1", rows[0].AdjClose)
	assert.Equal(t, "5000", rows[0].Volume)
}

func TestParseCSVBars_HeaderCaseInsensitive(t *testing.T) {
	csvData := "Date,Open,High,Low,Close\n2024-01-02,1,2,0.5,1.5\n"

	rows, err := ParseCSVBars(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1.5", rows[0].Close)
}

func TestParseCSVBars_MissingCloseColumn(t *testing.T) {
	csvData := "date,open,high,low\n2024-01-02,1,2,0.5\n"

	_, err := ParseCSVBars(strings.NewReader(csvData))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close")
}
