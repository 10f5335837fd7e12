package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/config"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	results []models.SecuritySearchResult
	history []models.SecurityHistory
	err     error
	calls   [][]string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FindSecurities(_ context.Context, ids []string) ([]models.SecuritySearchResult, error) {
	f.calls = append(f.calls, ids)
	return f.results, f.err
}

func (f *fakeProvider) HistoryForRange(context.Context, string, time.Time, time.Time) ([]models.SecurityHistory, error) {
	return f.history, f.err
}

func (f *fakeProvider) HistoryForDate(context.Context, string, time.Time) (*models.SecurityHistory, error) {
	if len(f.history) == 0 {
		return nil, f.err
	}
	return &f.history[0], nil
}

func (f *fakeProvider) IntradayForDate(context.Context, string, time.Time, string) ([]models.SecurityHistory, error) {
	return f.history, f.err
}

type fakeCache map[string][]models.Security

func (f fakeCache) Search(_ context.Context, term string) ([]models.Security, error) {
	return f[term], nil
}

func limits(max int, expire bool) map[string]config.SearchLimitConfig {
	cfg := config.SearchLimitConfig{MaxSearches: max, ExpirationHours: 24, EnableExpiration: expire}
	return map[string]config.SearchLimitConfig{"eodhd": cfg, "alpha-vantage": cfg}
}

func TestSearchLimiter(t *testing.T) {
	l := NewSearchLimiter(limits(2, false))

	assert.True(t, l.Allow("eodhd", "aapl"))
	l.Record("eodhd", "aapl")
	l.Record("eodhd", "AAPL")
	assert.False(t, l.Allow("eodhd", "Aapl"))
	assert.True(t, l.Allow("alpha-vantage", "AAPL"))

	stats := l.Stats()
	assert.Equal(t, 1, stats.TotalIdentifiers)
	assert.Equal(t, 2, stats.Identifiers["AAPL"]["eodhd"].Count)
	assert.Equal(t, 0, stats.Identifiers["AAPL"]["alpha-vantage"].Count)

	l.Clear("aapl")
	assert.True(t, l.Allow("eodhd", "AAPL"))
	assert.Equal(t, 0, l.Stats().TotalIdentifiers)
}

func TestSearchLimiterExpiration(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewSearchLimiter(limits(1, true))
	l.now = func() time.Time { return now }

	l.Record("eodhd", "VWRL")
	assert.False(t, l.Allow("eodhd", "VWRL"))

	now = now.Add(25 * time.Hour)
	assert.True(t, l.Allow("eodhd", "VWRL"))

	l.Record("eodhd", "VWRL")
	assert.Equal(t, 1, l.Stats().Identifiers["VWRL"]["eodhd"].Count)
}

func TestCombineSecurityResults(t *testing.T) {
	lse := "LSE"
	cached := []models.Security{
		{ID: "c1", Symbol: "AAPL", Name: "Apple (cached)"},
		{ID: "c2", Symbol: "VWRL", Name: "Vanguard FTSE All-World", Exchange: &lse},
	}
	external := []models.SecuritySearchResult{
		{Symbol: "AAPL", Name: "Apple Inc", SourceIdentifier: "eodhd"},
		{Symbol: "MSFT", Name: "Microsoft", SourceIdentifier: "eodhd"},
	}

	got := CombineSecurityResults(cached, external)
	require.Len(t, got, 3)
	assert.Equal(t, "Apple Inc", got[0].Name)
	assert.False(t, got[0].FromCache)
	assert.Equal(t, "MSFT", got[1].Symbol)
	assert.Equal(t, "VWRL", got[2].Symbol)
	assert.True(t, got[2].FromCache)
	assert.Equal(t, "LSE", got[2].Exchange)
}

func TestFindSecuritiesFallsBackWhenFirstProviderIsEmpty(t *testing.T) {
	first := &fakeProvider{name: "eodhd"}
	second := &fakeProvider{name: "alpha-vantage", results: []models.SecuritySearchResult{{Symbol: "TSLA", Name: "Tesla"}}}
	limiter := NewSearchLimiter(limits(5, false))
	svc := NewSecuritiesService(fakeCache{}, limiter, first, second)

	got, err := svc.FindSecurities(context.Background(), []string{"TSLA"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TSLA", got[0].Symbol)
	assert.Equal(t, 1, limiter.Stats().Identifiers["TSLA"]["eodhd"].Count)
	assert.Equal(t, 1, limiter.Stats().Identifiers["TSLA"]["alpha-vantage"].Count)
}

func TestFindSecuritiesSkipsSecondProviderWhenFirstFinds(t *testing.T) {
	first := &fakeProvider{name: "eodhd", results: []models.SecuritySearchResult{{Symbol: "AAPL", Name: "Apple"}}}
	second := &fakeProvider{name: "alpha-vantage"}
	svc := NewSecuritiesService(fakeCache{"AAPL": {{Symbol: "AAPL.L", Name: "Apple London"}}}, NewSearchLimiter(limits(5, false)), first, second)

	got, err := svc.FindSecurities(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Empty(t, second.calls)
}

func TestFindSecuritiesFailedCallsDoNotCount(t *testing.T) {
	first := &fakeProvider{name: "eodhd", err: errors.New("boom")}
	limiter := NewSearchLimiter(limits(1, false))
	svc := NewSecuritiesService(fakeCache{}, limiter, first)

	for i := 0; i < 3; i++ {
		_, err := svc.FindSecurities(context.Background(), []string{"AAPL"})
		require.NoError(t, err)
	}
	assert.Len(t, first.calls, 3)
	assert.Equal(t, 0, limiter.Stats().TotalIdentifiers)
}

func TestFindSecuritiesRespectsLimit(t *testing.T) {
	first := &fakeProvider{name: "eodhd"}
	limiter := NewSearchLimiter(limits(1, false))
	svc := NewSecuritiesService(fakeCache{}, limiter, first)

	_, _ = svc.FindSecurities(context.Background(), []string{"AAPL", "MSFT"})
	_, _ = svc.FindSecurities(context.Background(), []string{"AAPL", "MSFT", "TSLA"})
	require.Len(t, first.calls, 2)
	assert.Equal(t, []string{"TSLA"}, first.calls[1])
}

func TestCalculatedHistory(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	empty := &fakeProvider{name: "eodhd", err: errors.New("down")}
	full := &fakeProvider{name: "alpha-vantage", history: []models.SecurityHistory{{Symbol: "AAPL", Date: day, Open: 10, High: 12, Low: 9, Close: 11}}}
	svc := NewSecuritiesService(fakeCache{}, nil, empty, full)

	got, err := svc.CalculatedHistory(context.Background(), "AAPL", decimal.NewFromFloat(2.5), day, day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 25.0, got[0].Open)
	assert.Equal(t, 27.5, got[0].Close)
}

func TestEODHDSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/AAPL,VWRL", r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("api_token"))
		fmt.Fprint(w, `[{"Code":"AAPL","Name":"Apple Inc","Exchange":"US","Currency":"USD","ISIN":"US0378331005","Type":"Common Stock"},{"Code":"","Name":"broken"}]`)
	}))
	defer srv.Close()

	e := NewEODHD("key", srv.Client())
	e.BaseURL = srv.URL

	got, err := e.FindSecurities(context.Background(), []string{"AAPL", "VWRL"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "US0378331005", got[0].ISIN)
	assert.Equal(t, "eodhd", got[0].SourceIdentifier)
}

func TestEODHDErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"Invalid API token"}`)
	}))
	defer srv.Close()

	e := NewEODHD("bad", srv.Client())
	e.BaseURL = srv.URL

	_, err := e.FindSecurities(context.Background(), []string{"AAPL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API token")
}

func TestEODHDHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eod/AAPL.US", r.URL.Path)
		assert.Equal(t, "2024-01-02", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-01-03", r.URL.Query().Get("to"))
		fmt.Fprint(w, `[{"date":"2024-01-02","open":1,"high":2,"low":0.5,"close":1.5},{"date":"2024-01-03","open":1.5,"high":2,"low":1,"close":2}]`)
	}))
	defer srv.Close()

	e := NewEODHD("key", srv.Client())
	e.BaseURL = srv.URL

	got, err := e.HistoryForRange(context.Background(), "AAPL",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), got[1].Date)
	assert.Equal(t, 2.0, got[1].Close)
}

func TestAlphaVantageSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SYMBOL_SEARCH", r.URL.Query().Get("function"))
		fmt.Fprint(w, `{"bestMatches":[
			{"1. symbol":"AAPL","2. name":"Apple Inc","3. type":"Equity","4. region":"United States","8. currency":"USD"},
			{"1. symbol":"AAPL34.SAO","2. name":"Apple BDR","3. type":"Equity","4. region":"Brazil/Sao Paolo","8. currency":"BRL"}
		]}`)
	}))
	defer srv.Close()

	a := NewAlphaVantage("key", srv.Client())
	a.BaseURL = srv.URL

	got, err := a.FindSecurities(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "US", got[0].Exchange)
	assert.Equal(t, "SAO", got[1].Exchange)
	assert.Equal(t, "alpha-vantage", got[1].SourceIdentifier)
}

func TestAlphaVantageRateLimitNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute"}`)
	}))
	defer srv.Close()

	a := NewAlphaVantage("key", srv.Client())
	a.BaseURL = srv.URL

	_, err := a.FindSecurities(context.Background(), []string{"AAPL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestAlphaVantageHistoryFiltersRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("outputsize"))
		fmt.Fprint(w, `{"Time Series (Daily)":{
			"2024-01-04":{"1. open":"3","2. high":"3","3. low":"3","4. close":"3","5. volume":"1"},
			"2024-01-02":{"1. open":"1","2. high":"1","3. low":"1","4. close":"1","5. volume":"1"},
			"2024-01-03":{"1. open":"2","2. high":"2","3. low":"2","4. close":"2","5. volume":"1"}
		}}`)
	}))
	defer srv.Close()

	a := NewAlphaVantage("key", srv.Client())
	a.BaseURL = srv.URL

	got, err := a.HistoryForRange(context.Background(), "IBM",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Close)
	assert.Equal(t, 2.0, got[1].Close)
}

func TestAlphaVantageExchange(t *testing.T) {
	ex, cur := AlphaVantageExchange("VOD.LON")
	assert.Equal(t, "LSE", ex)
	assert.Equal(t, "GBP", cur)

	ex, _ = AlphaVantageExchange("XYZ.QQQ")
	assert.Empty(t, ex)
}

func TestDiskCacheServesRepeatedGets(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &DiskCache{Dir: t.TempDir(), Base: srv.Client().Transport}}
	for i := 0; i < 3; i++ {
		resp, err := client.Get(srv.URL + "/eod/AAPL.US")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestDiskCacheSkipsProviderErrors(t *testing.T) {
	bodies := map[string]string{
		"/eod/LIMIT.US":    `{"error":"You exceeded your daily API requests limit"}`,
		"/query/note":      `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute"}`,
		"/query/info":      `{"Information":"rate limit reached"}`,
		"/query/bad":       `{"Error Message":"Invalid API call"}`,
		"/eod/BROKEN.US":   `<html>maintenance</html>`,
		"/search/VWRL.LSE": `[{"Code":"VWRL"}]`,
	}
	hits := map[string]*atomic.Int32{}
	for path := range bodies {
		hits[path] = &atomic.Int32{}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits[r.URL.Path].Add(1)
		fmt.Fprint(w, bodies[r.URL.Path])
	}))
	defer srv.Close()

	client := &http.Client{Transport: &DiskCache{Dir: t.TempDir(), Base: srv.Client().Transport}}
	for path, body := range bodies {
		for i := 0; i < 2; i++ {
			resp, err := client.Get(srv.URL + path)
			require.NoError(t, err)
			got, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			require.NoError(t, err)
			assert.Equal(t, body, string(got), path)
		}
	}

	for path, n := range hits {
		want := int32(2)
		if path == "/search/VWRL.LSE" {
			want = 1
		}
		assert.Equal(t, want, n.Load(), path)
	}
}
