package dataflows

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPriceVendor struct {
	name    string
	payload PricePayload
	err     error
	calls   int
}

func (s *stubPriceVendor) Name() string { return s.name }

func (s *stubPriceVendor) FetchPrices(_ context.Context, _ string, _, _ time.Time) (PricePayload, error) {
	s.calls++
	if s.err != nil {
		return PricePayload{}, s.err
	}
	return s.payload, nil
}

type stubNewsVendor struct {
	name    string
	payload NewsPayload
	err     error
	calls   int
}

func (s *stubNewsVendor) Name() string { return s.name }

func (s *stubNewsVendor) FetchNews(_ context.Context, _ string, _, _ time.Time) (NewsPayload, error) {
	s.calls++
	if s.err != nil {
		return NewsPayload{}, s.err
	}
	return s.payload, nil
}

func pricePayloadWithBars(symbol, source string, n int) PricePayload {
	rows := make([]RawBar, 0, n)
	base := day("2024-01-01")
	for i := 0; i < n; i++ {
		d := base.AddDate(0, 0, i)
		rows = append(rows, RawBar{
			Date: d.Format("2006-01-02"), Open: "100", High: "101", Low: "99", Close: "100",
		})
	}
	return BuildPricePayload(symbol, base, base.AddDate(0, 0, n), source, rows, TimeframeDaily)
}

func TestRoutePrices_FirstVendorWins(t *testing.T) {
	first := &stubPriceVendor{name: "first", payload: pricePayloadWithBars("AAPL", "first", 2)}
	second := &stubPriceVendor{name: "second", payload: pricePayloadWithBars("AAPL", "second", 2)}

	router := NewRouterFromVendors([]PriceVendor{first, second}, nil, zerolog.Nop())
	payload := router.RoutePrices(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))

	assert.True(t, payload.OK())
	assert.Equal(t, "first", payload.Source)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestRoutePrices_FailsOverOnError(t *testing.T) {
	failing := &stubPriceVendor{name: "failing", err: NewAuthError("failing", "missing api key")}
	backup := &stubPriceVendor{name: "backup", payload: pricePayloadWithBars("AAPL", "backup", 2)}

	router := NewRouterFromVendors([]PriceVendor{failing, backup}, nil, zerolog.Nop())
	payload := router.RoutePrices(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))

	assert.True(t, payload.OK())
	assert.Equal(t, "backup", payload.Source)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestRoutePrices_FailsOverOnErrorPayload(t *testing.T) {
	malformed := &stubPriceVendor{
		name:    "malformed",
		payload: ErrorPricePayload("AAPL", day("2024-01-01"), day("2024-01-31"), "malformed", TimeframeDaily, "bad csv"),
	}
	backup := &stubPriceVendor{name: "backup", payload: pricePayloadWithBars("AAPL", "backup", 2)}

	router := NewRouterFromVendors([]PriceVendor{malformed, backup}, nil, zerolog.Nop())
	payload := router.RoutePrices(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))

	assert.True(t, payload.OK())
	assert.Equal(t, "backup", payload.Source)
}

func TestRoutePrices_EmptyPayloadIsSuccess(t *testing.T) {
	empty := &stubPriceVendor{
		name:    "empty",
		payload: BuildPricePayload("DELISTED", day("2024-01-01"), day("2024-01-31"), "empty", nil, TimeframeDaily),
	}
	backup := &stubPriceVendor{name: "backup", payload: pricePayloadWithBars("DELISTED", "backup", 2)}

	router := NewRouterFromVendors([]PriceVendor{empty, backup}, nil, zerolog.Nop())
	payload := router.RoutePrices(context.Background(), "DELISTED", day("2024-01-01"), day("2024-01-31"))

	assert.True(t, payload.OK())
	assert.True(t, payload.Empty())
	assert.Equal(t, "empty", payload.Source)
	assert.Equal(t, 0, backup.calls, "an empty answer must not trigger fallover")
}

func TestRoutePrices_AllVendorsFail(t *testing.T) {
	a := &stubPriceVendor{name: "a", err: NewAuthError("a", "missing api key")}
	b := &stubPriceVendor{name: "b", err: NewAPIError("b", "upstream 500", nil)}

	router := NewRouterFromVendors([]PriceVendor{a, b}, nil, zerolog.Nop())
	payload := router.RoutePrices(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))

	assert.False(t, payload.OK())
	assert.NotNil(t, payload.Records)
	assert.Equal(t, 0, payload.Meta.RecordCount)
	assert.Contains(t, payload.Meta.Error, "all price vendors failed")
	assert.Contains(t, payload.Meta.Error, "a: ")
	assert.Contains(t, payload.Meta.Error, "b: ")
}

func TestRoutePrices_ExactlyOneAttemptPerVendor(t *testing.T) {
	a := &stubPriceVendor{name: "a", err: NewAuthError("a", "missing api key")}
	b := &stubPriceVendor{name: "b", err: NewAPIError("b", "upstream 500", nil)}
	c := &stubPriceVendor{name: "c", payload: pricePayloadWithBars("AAPL", "c", 2)}

	router := NewRouterFromVendors([]PriceVendor{a, b, c}, nil, zerolog.Nop())
	payload := router.RoutePrices(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))

	assert.Equal(t, "c", payload.Source)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
}

func TestRoutePrices_DeterministicOrder(t *testing.T) {
	// The same chain must fail over identically on every run.
	for i := 0; i < 5; i++ {
		a := &stubPriceVendor{name: "a", err: NewAPIError("a", "down", nil)}
		b := &stubPriceVendor{name: "b", payload: pricePayloadWithBars("AAPL", "b", 2)}
		c := &stubPriceVendor{name: "c", payload: pricePayloadWithBars("AAPL", "c", 2)}

		router := NewRouterFromVendors([]PriceVendor{a, b, c}, nil, zerolog.Nop())
		payload := router.RoutePrices(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))

		require.Equal(t, "b", payload.Source)
		require.Equal(t, 0, c.calls)
	}
}

func TestRouteNews_EmptyPayloadTriggersFallover(t *testing.T) {
	empty := &stubNewsVendor{
		name:    "empty",
		payload: BuildNewsPayload("AAPL", day("2024-01-01"), day("2024-01-31"), "empty", nil),
	}
	backup := &stubNewsVendor{
		name: "backup",
		payload: BuildNewsPayload("AAPL", day("2024-01-01"), day("2024-01-31"), "backup", []NewsArticle{
			{Title: "headline", Source: "backup", PublishedAt: day("2024-01-15")},
		}),
	}

	router := NewRouterFromVendors(nil, []NewsVendor{empty, backup}, zerolog.Nop())
	payload := router.RouteNews(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))

	assert.True(t, payload.OK())
	assert.Equal(t, "backup", payload.Source)
	assert.Equal(t, 1, empty.calls)
	assert.Equal(t, 1, backup.calls, "an empty news answer must trigger fallover")
}

func TestRouteNews_ErrorPayloadFalloverIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	broken := &stubNewsVendor{
		name:    "broken",
		payload: ErrorNewsPayload("AAPL", day("2024-01-01"), day("2024-01-31"), "broken", "upstream 500"),
	}
	backup := &stubNewsVendor{
		name: "backup",
		payload: BuildNewsPayload("AAPL", day("2024-01-01"), day("2024-01-31"), "backup", []NewsArticle{
			{Title: "headline", Source: "backup", PublishedAt: day("2024-01-15")},
		}),
	}

	router := NewRouterFromVendors(nil, []NewsVendor{broken, backup}, logger)
	payload := router.RouteNews(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))

	assert.True(t, payload.OK())
	assert.Equal(t, "backup", payload.Source)
	assert.Contains(t, buf.String(), "news vendor returned error payload")
	assert.Contains(t, buf.String(), "broken")
	assert.Contains(t, buf.String(), "upstream 500")
}

func TestRouteNews_AllVendorsEmpty(t *testing.T) {
	a := &stubNewsVendor{name: "a", payload: BuildNewsPayload("AAPL", day("2024-01-01"), day("2024-01-31"), "a", nil)}
	b := &stubNewsVendor{name: "b", err: NewRateLimitError("b", "throttled")}

	router := NewRouterFromVendors(nil, []NewsVendor{a, b}, zerolog.Nop())
	payload := router.RouteNews(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))

	assert.False(t, payload.OK())
	assert.Contains(t, payload.Meta.Error, "all news vendors failed")
	assert.Contains(t, payload.Meta.Error, "no articles returned")
}
