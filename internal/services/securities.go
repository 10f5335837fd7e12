package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/config"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SecurityProvider es un proveedor externo de datos de mercado.
type SecurityProvider interface {
	Name() string
	FindSecurities(ctx context.Context, identifiers []string) ([]models.SecuritySearchResult, error)
	HistoryForRange(ctx context.Context, symbol string, start, end time.Time) ([]models.SecurityHistory, error)
	// HistoryForDate devuelve nil, nil cuando el proveedor no tiene datos para ese día.
	HistoryForDate(ctx context.Context, symbol string, date time.Time) (*models.SecurityHistory, error)
	IntradayForDate(ctx context.Context, symbol string, date time.Time, interval string) ([]models.SecurityHistory, error)
}

// SecurityCache es la tabla local de securities.
type SecurityCache interface {
	Search(ctx context.Context, term string) ([]models.Security, error)
}

type SearchRecord struct {
	Count      int       `json:"count"`
	LastSearch time.Time `json:"lastSearch"`
}

type SearchStats struct {
	TotalIdentifiers int                                `json:"totalIdentifiers"`
	Identifiers      map[string]map[string]SearchRecord `json:"identifiers"`
}

// SearchLimiter limita cuántas veces se busca el mismo identificador en cada proveedor.
type SearchLimiter struct {
	mu      sync.Mutex
	limits  map[string]config.SearchLimitConfig
	records map[string]map[string]SearchRecord // identificador -> proveedor -> registro
	now     func() time.Time
}

func NewSearchLimiter(limits map[string]config.SearchLimitConfig) *SearchLimiter {
	return &SearchLimiter{
		limits:  limits,
		records: make(map[string]map[string]SearchRecord),
		now:     time.Now,
	}
}

func (l *SearchLimiter) expired(provider string, rec SearchRecord) bool {
	cfg := l.limits[provider]
	if !cfg.EnableExpiration {
		return false
	}
	return l.now().After(rec.LastSearch.Add(time.Duration(cfg.ExpirationHours) * time.Hour))
}

// Allow indica si todavía se puede consultar el proveedor por este identificador.
func (l *SearchLimiter) Allow(provider, identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := strings.ToUpper(identifier)
	rec, ok := l.records[id][provider]
	if !ok || l.expired(provider, rec) {
		return true
	}
	if rec.Count < l.limits[provider].MaxSearches {
		return true
	}
	zap.L().Warn("límite de búsquedas alcanzado",
		zap.String("identifier", id),
		zap.String("provider", provider),
		zap.Int("count", rec.Count),
		zap.Int("max", l.limits[provider].MaxSearches),
	)
	return false
}

// Record suma una búsqueda exitosa; un registro vencido vuelve a empezar en 1.
func (l *SearchLimiter) Record(provider, identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := strings.ToUpper(identifier)
	now := l.now()
	byProvider, ok := l.records[id]
	if !ok {
		byProvider = make(map[string]SearchRecord, len(l.limits))
		for name := range l.limits {
			byProvider[name] = SearchRecord{LastSearch: now}
		}
		l.records[id] = byProvider
	}

	rec, ok := byProvider[provider]
	if !ok || l.expired(provider, rec) {
		byProvider[provider] = SearchRecord{Count: 1, LastSearch: now}
		return
	}
	byProvider[provider] = SearchRecord{Count: rec.Count + 1, LastSearch: now}
}

func (l *SearchLimiter) Stats() SearchStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := SearchStats{
		TotalIdentifiers: len(l.records),
		Identifiers:      make(map[string]map[string]SearchRecord, len(l.records)),
	}
	for id, byProvider := range l.records {
		cp := make(map[string]SearchRecord, len(byProvider))
		for p, rec := range byProvider {
			cp[p] = rec
		}
		stats.Identifiers[id] = cp
	}
	return stats
}

// Clear borra el historial de un identificador, o de todos si está vacío.
func (l *SearchLimiter) Clear(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if identifier == "" {
		l.records = make(map[string]map[string]SearchRecord)
		zap.L().Info("historial de búsquedas borrado")
		return
	}
	delete(l.records, strings.ToUpper(identifier))
	zap.L().Info("historial de búsquedas borrado", zap.String("identifier", strings.ToUpper(identifier)))
}

// SecuritiesService combina la caché local con los proveedores externos, en orden de prioridad.
type SecuritiesService struct {
	cache     SecurityCache
	limiter   *SearchLimiter
	providers []SecurityProvider
}

func NewSecuritiesService(cache SecurityCache, limiter *SearchLimiter, providers ...SecurityProvider) *SecuritiesService {
	return &SecuritiesService{cache: cache, limiter: limiter, providers: providers}
}

func (s *SecuritiesService) Limiter() *SearchLimiter {
	return s.limiter
}

// FindSecurities busca en la caché y en los proveedores y une los resultados por símbolo.
func (s *SecuritiesService) FindSecurities(ctx context.Context, identifiers []string) ([]models.SecuritySearchResult, error) {
	cachedByID := make([][]models.Security, len(identifiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range identifiers {
		g.Go(func() error {
			found, err := s.cache.Search(gctx, id)
			if err != nil {
				return fmt.Errorf("searching cache for %q: %w", id, err)
			}
			cachedByID[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var cached []models.Security
	for _, found := range cachedByID {
		cached = append(cached, found...)
	}

	external := s.findProviderSecurities(ctx, identifiers)
	return CombineSecurityResults(cached, external), nil
}

// findProviderSecurities consulta los proveedores en orden hasta que uno devuelva algo.
// Solo las llamadas exitosas cuentan para el límite.
func (s *SecuritiesService) findProviderSecurities(ctx context.Context, identifiers []string) []models.SecuritySearchResult {
	for _, p := range s.providers {
		var allowed []string
		for _, id := range identifiers {
			if s.limiter == nil || s.limiter.Allow(p.Name(), id) {
				allowed = append(allowed, id)
			}
		}
		if len(allowed) == 0 {
			continue
		}

		results, err := p.FindSecurities(ctx, allowed)
		if err != nil {
			zap.L().Error("falló la búsqueda en el proveedor", zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		if s.limiter != nil {
			for _, id := range allowed {
				s.limiter.Record(p.Name(), id)
			}
		}
		if len(results) > 0 {
			return results
		}
	}
	return nil
}

// CombineSecurityResults deduplica por símbolo; los resultados externos tienen prioridad.
func CombineSecurityResults(cached []models.Security, external []models.SecuritySearchResult) []models.SecuritySearchResult {
	index := make(map[string]int)
	var out []models.SecuritySearchResult

	for _, sec := range external {
		if sec.Symbol == "" {
			continue
		}
		if i, ok := index[sec.Symbol]; ok {
			out[i] = sec
			continue
		}
		index[sec.Symbol] = len(out)
		out = append(out, sec)
	}

	for _, sec := range cached {
		if sec.Symbol == "" {
			continue
		}
		if _, ok := index[sec.Symbol]; ok {
			continue
		}
		index[sec.Symbol] = len(out)
		out = append(out, fromCache(sec))
	}
	return out
}

func fromCache(sec models.Security) models.SecuritySearchResult {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return models.SecuritySearchResult{
		ID:        sec.ID,
		Symbol:    sec.Symbol,
		Name:      sec.Name,
		Exchange:  deref(sec.Exchange),
		Country:   deref(sec.Country),
		Currency:  deref(sec.Currency),
		Type:      deref(sec.Type),
		ISIN:      deref(sec.ISIN),
		CUSIP:     deref(sec.CUSIP),
		FIGI:      deref(sec.FIGI),
		FromCache: true,
	}
}

// HistoryForRange devuelve el histórico del primer proveedor que tenga datos.
func (s *SecuritiesService) HistoryForRange(ctx context.Context, symbol string, start, end time.Time) ([]models.SecurityHistory, error) {
	for _, p := range s.providers {
		history, err := p.HistoryForRange(ctx, symbol, start, end)
		if err != nil {
			zap.L().Warn("histórico no disponible", zap.String("provider", p.Name()), zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if len(history) > 0 {
			return history, nil
		}
	}
	return []models.SecurityHistory{}, nil
}

func (s *SecuritiesService) HistoryForDate(ctx context.Context, symbol string, date time.Time) (*models.SecurityHistory, error) {
	var errs []error
	for _, p := range s.providers {
		h, err := p.HistoryForDate(ctx, symbol, date)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if h != nil {
			return h, nil
		}
	}
	return nil, errors.Join(errs...)
}

func (s *SecuritiesService) IntradayForDate(ctx context.Context, symbol string, date time.Time, interval string) ([]models.SecurityHistory, error) {
	for _, p := range s.providers {
		history, err := p.IntradayForDate(ctx, symbol, date, interval)
		if err != nil {
			zap.L().Warn("intradía no disponible", zap.String("provider", p.Name()), zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if len(history) > 0 {
			return history, nil
		}
	}
	return []models.SecurityHistory{}, nil
}

// CalculatedHistory escala las velas por la cantidad de participaciones.
func (s *SecuritiesService) CalculatedHistory(ctx context.Context, symbol string, holdings decimal.Decimal, start, end time.Time) ([]models.SecurityHistory, error) {
	history, err := s.HistoryForRange(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	shares := holdings.InexactFloat64()
	for i := range history {
		history[i].Open *= shares
		history[i].High *= shares
		history[i].Low *= shares
		history[i].Close *= shares
	}
	return history, nil
}

// jsonString lee un string de un JSON genérico; jsonpath devuelve error si la clave no existe.
func jsonString(path string, obj any) (string, bool) {
	v, err := jsonpath.Get(path, obj)
	if err != nil {
		return "", false
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return "", false
		}
		v = list[0]
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
