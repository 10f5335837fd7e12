package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/PaesslerAG/jsonpath"
	"go.uber.org/zap"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// Las marcas de tiempo intradía de Alpha Vantage vienen en hora de Nueva York.
var usEastern = time.FixedZone("EST", -5*60*60)

type exchangeSuffix struct {
	Exchange string
	Currency string
}

// Sufijos de bolsa que Alpha Vantage agrega a los símbolos, ej. "AAPL34.SAO".
var alphaVantageSuffixes = map[string]exchangeSuffix{
	"LON": {"LSE", "GBP"},
	"AMS": {"AMS", "EUR"},
	"PAR": {"PAR", "EUR"},
	"SHZ": {"SHZ", "CNY"},
	"SAO": {"SAO", "BRL"},
	"DEX": {"DEX", "EUR"},
	"TRT": {"TRT", "CAD"},
	"BSE": {"BSE", "INR"},
	"FRK": {"FRK", "EUR"},
	"SHH": {"SHH", "CNY"},
}

// AlphaVantageExchange deduce la bolsa del sufijo del símbolo. Sin sufijo es US;
// un sufijo desconocido devuelve "".
func AlphaVantageExchange(symbol string) (exchange, currency string) {
	i := strings.LastIndex(symbol, ".")
	if i < 0 {
		return "US", "USD"
	}
	if s, ok := alphaVantageSuffixes[symbol[i+1:]]; ok {
		return s.Exchange, s.Currency
	}
	return "", ""
}

// AlphaVantage implementa SecurityProvider sobre https://www.alphavantage.co.
type AlphaVantage struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

func NewAlphaVantage(apiKey string, client *http.Client) *AlphaVantage {
	if client == nil {
		client = http.DefaultClient
	}
	return &AlphaVantage{BaseURL: alphaVantageBaseURL, apiKey: apiKey, client: client}
}

func (a *AlphaVantage) Name() string { return "alpha-vantage" }

func (a *AlphaVantage) get(ctx context.Context, params url.Values) (any, error) {
	params.Set("apikey", a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	_, obj, err := getJSON(req, a.client)
	if err != nil {
		return nil, fmt.Errorf("Alpha Vantage: %w", err)
	}
	if msg, ok := jsonString(`$["Error Message"]`, obj); ok {
		return nil, fmt.Errorf("Alpha Vantage API error: %s", msg)
	}
	if msg, ok := jsonString("$.Note", obj); ok {
		return nil, fmt.Errorf("Alpha Vantage API rate limit: %s", msg)
	}
	return obj, nil
}

// FindSecurities busca cada identificador por separado; solo falla si fallan todos.
func (a *AlphaVantage) FindSecurities(ctx context.Context, identifiers []string) ([]models.SecuritySearchResult, error) {
	var results []models.SecuritySearchResult
	var errs []error

	for _, id := range identifiers {
		obj, err := a.get(ctx, url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {id}})
		if err != nil {
			zap.L().Warn("búsqueda en Alpha Vantage fallida", zap.String("identifier", id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		matches, err := jsonpath.Get("$.bestMatches", obj)
		if err != nil {
			continue
		}
		list, _ := matches.([]any)
		for _, m := range list {
			symbol, ok := jsonString(`$["1. symbol"]`, m)
			if !ok {
				continue
			}
			name, _ := jsonString(`$["2. name"]`, m)
			typ, _ := jsonString(`$["3. type"]`, m)
			region, _ := jsonString(`$["4. region"]`, m)
			currency, _ := jsonString(`$["8. currency"]`, m)
			exchange, _ := AlphaVantageExchange(symbol)
			results = append(results, models.SecuritySearchResult{
				Symbol:           symbol,
				Name:             name,
				Type:             typ,
				Country:          region,
				Currency:         currency,
				Exchange:         exchange,
				SourceIdentifier: a.Name(),
			})
		}
	}

	if len(errs) > 0 && len(errs) == len(identifiers) {
		return nil, errors.Join(errs...)
	}
	return results, nil
}

// timeSeries busca la serie pedida y si no está prueba las claves conocidas.
func timeSeries(obj any, key string) (map[string]any, error) {
	keys := []string{key, "Time Series (Daily)", "Time Series (15min)", "Time Series (30min)", "Time Series (60min)"}
	for _, k := range keys {
		if k == "" {
			continue
		}
		v, err := jsonpath.Get(`$["`+k+`"]`, obj)
		if err != nil {
			continue
		}
		if series, ok := v.(map[string]any); ok {
			return series, nil
		}
	}
	return nil, errors.New("Alpha Vantage API returned unexpected data format for history")
}

func alphaVantageHistory(symbol, stamp string, values any) (models.SecurityHistory, error) {
	h := models.SecurityHistory{Symbol: symbol}
	var err error
	if strings.Contains(stamp, " ") {
		h.Date, err = time.ParseInLocation("2006-01-02 15:04:05", stamp, usEastern)
	} else {
		h.Date, err = time.Parse("2006-01-02", stamp)
	}
	if err != nil {
		return h, fmt.Errorf("Alpha Vantage: bad timestamp %q", stamp)
	}

	fields := []struct {
		path string
		dst  *float64
	}{
		{`$["1. open"]`, &h.Open},
		{`$["2. high"]`, &h.High},
		{`$["3. low"]`, &h.Low},
		{`$["4. close"]`, &h.Close},
	}
	for _, f := range fields {
		raw, _ := jsonString(f.path, values)
		if *f.dst, err = strconv.ParseFloat(raw, 64); err != nil {
			return h, fmt.Errorf("Alpha Vantage: bad price %q for %s", raw, stamp)
		}
	}
	return h, nil
}

func sortHistory(h []models.SecurityHistory) {
	sort.Slice(h, func(i, j int) bool { return h[i].Date.Before(h[j].Date) })
}

func (a *AlphaVantage) daily(ctx context.Context, symbol, size string) (map[string]any, error) {
	obj, err := a.get(ctx, url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {symbol},
		"outputsize": {size},
		"datatype":   {"json"},
	})
	if err != nil {
		return nil, err
	}
	return timeSeries(obj, "Time Series (Daily)")
}

func (a *AlphaVantage) HistoryForRange(ctx context.Context, symbol string, start, end time.Time) ([]models.SecurityHistory, error) {
	series, err := a.daily(ctx, symbol, "full")
	if err != nil {
		return nil, err
	}
	from, to := start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02")

	var out []models.SecurityHistory
	for stamp, values := range series {
		if stamp < from || stamp > to {
			continue
		}
		h, err := alphaVantageHistory(symbol, stamp, values)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	sortHistory(out)
	return out, nil
}

func (a *AlphaVantage) HistoryForDate(ctx context.Context, symbol string, date time.Time) (*models.SecurityHistory, error) {
	series, err := a.daily(ctx, symbol, "compact")
	if err != nil {
		return nil, err
	}
	stamp := date.UTC().Format("2006-01-02")
	values, ok := series[stamp]
	if !ok {
		return nil, nil
	}
	h, err := alphaVantageHistory(symbol, stamp, values)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (a *AlphaVantage) IntradayForDate(ctx context.Context, symbol string, date time.Time, interval string) ([]models.SecurityHistory, error) {
	if interval == "" {
		interval = "15min"
	}
	obj, err := a.get(ctx, url.Values{
		"function":   {"TIME_SERIES_INTRADAY"},
		"symbol":     {strings.ToUpper(symbol)},
		"interval":   {interval},
		"outputsize": {"compact"},
	})
	if err != nil {
		return nil, err
	}
	series, err := timeSeries(obj, "Time Series ("+interval+")")
	if err != nil {
		return nil, err
	}

	day := date.UTC().Format("2006-01-02")
	var out []models.SecurityHistory
	for stamp, values := range series {
		if !strings.HasPrefix(stamp, day+" ") {
			continue
		}
		h, err := alphaVantageHistory(symbol, stamp, values)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	sortHistory(out)
	return out, nil
}
