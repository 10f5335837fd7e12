package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
)

const eodhdBaseURL = "https://eodhd.com/api"

// EODHD implementa SecurityProvider sobre https://eodhd.com.
type EODHD struct {
	BaseURL string
	apiKey  string
	client  *http.Client
}

func NewEODHD(apiKey string, client *http.Client) *EODHD {
	if client == nil {
		client = http.DefaultClient
	}
	return &EODHD{BaseURL: eodhdBaseURL, apiKey: apiKey, client: client}
}

func (e *EODHD) Name() string { return "eodhd" }

type eodhdSecurity struct {
	Code     string `json:"Code"`
	Country  string `json:"Country"`
	Currency string `json:"Currency"`
	Exchange string `json:"Exchange"`
	ISIN     string `json:"ISIN"`
	Name     string `json:"Name"`
	Type     string `json:"Type"`
}

type eodhdBar struct {
	Date     string  `json:"date"`
	Datetime string  `json:"datetime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
}

// eodhdTicker agrega la bolsa US cuando el símbolo no trae sufijo.
func eodhdTicker(symbol string) string {
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + ".US"
}

func (e *EODHD) get(ctx context.Context, path string, params url.Values) ([]byte, any, error) {
	params.Set("api_token", e.apiKey)
	params.Set("fmt", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}
	body, obj, err := getJSON(req, e.client)
	if err != nil {
		return nil, nil, fmt.Errorf("EODHD: %w", err)
	}
	if _, isObject := obj.(map[string]any); isObject {
		if msg, ok := jsonString("$.error", obj); ok {
			return nil, nil, fmt.Errorf("EODHD API error: %s", msg)
		}
		if msg, ok := jsonString("$.message", obj); ok {
			return nil, nil, fmt.Errorf("EODHD API error: %s", msg)
		}
		return nil, nil, fmt.Errorf("EODHD API: expected an array response")
	}
	return body, obj, nil
}

func (e *EODHD) FindSecurities(ctx context.Context, identifiers []string) ([]models.SecuritySearchResult, error) {
	if len(identifiers) == 0 {
		return nil, nil
	}
	body, _, err := e.get(ctx, "/search/"+url.PathEscape(strings.Join(identifiers, ",")), url.Values{})
	if err != nil {
		return nil, err
	}
	var found []eodhdSecurity
	if err := json.Unmarshal(body, &found); err != nil {
		return nil, fmt.Errorf("EODHD search: %w", err)
	}

	results := make([]models.SecuritySearchResult, 0, len(found))
	for _, s := range found {
		if s.Code == "" || s.Name == "" {
			continue
		}
		results = append(results, models.SecuritySearchResult{
			Symbol:           s.Code,
			Name:             s.Name,
			Exchange:         s.Exchange,
			Country:          s.Country,
			Currency:         s.Currency,
			Type:             s.Type,
			ISIN:             s.ISIN,
			SourceIdentifier: e.Name(),
		})
	}
	return results, nil
}

func (e *EODHD) bars(ctx context.Context, path string, params url.Values) ([]eodhdBar, error) {
	body, _, err := e.get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	var bars []eodhdBar
	if err := json.Unmarshal(body, &bars); err != nil {
		return nil, fmt.Errorf("EODHD history: %w", err)
	}
	return bars, nil
}

func (b eodhdBar) history(symbol string, date time.Time) models.SecurityHistory {
	return models.SecurityHistory{Symbol: symbol, Date: date, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
}

func (e *EODHD) HistoryForRange(ctx context.Context, symbol string, start, end time.Time) ([]models.SecurityHistory, error) {
	bars, err := e.bars(ctx, "/eod/"+eodhdTicker(symbol), url.Values{
		"from": {start.UTC().Format("2006-01-02")},
		"to":   {end.UTC().Format("2006-01-02")},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.SecurityHistory, 0, len(bars))
	for _, b := range bars {
		d, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			return nil, fmt.Errorf("EODHD history: bad date %q", b.Date)
		}
		out = append(out, b.history(symbol, d))
	}
	return out, nil
}

func (e *EODHD) HistoryForDate(ctx context.Context, symbol string, date time.Time) (*models.SecurityHistory, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	history, err := e.HistoryForRange(ctx, symbol, day, day)
	if err != nil || len(history) == 0 {
		return nil, err
	}
	return &history[0], nil
}

func (e *EODHD) IntradayForDate(ctx context.Context, symbol string, date time.Time, interval string) ([]models.SecurityHistory, error) {
	if interval == "" {
		interval = "15min"
	}
	day := date.UTC().Truncate(24 * time.Hour)
	bars, err := e.bars(ctx, "/intraday/"+eodhdTicker(symbol), url.Values{
		"interval": {strings.Replace(interval, "min", "m", 1)},
		"from":     {strconv.FormatInt(day.Unix(), 10)},
		"to":       {strconv.FormatInt(day.Add(24*time.Hour-time.Second).Unix(), 10)},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.SecurityHistory, 0, len(bars))
	for _, b := range bars {
		// EODHD devuelve datetime en UTC
		t, err := time.Parse("2006-01-02 15:04:05", b.Datetime)
		if err != nil {
			return nil, fmt.Errorf("EODHD intraday: bad datetime %q", b.Datetime)
		}
		out = append(out, b.history(symbol, t))
	}
	return out, nil
}
