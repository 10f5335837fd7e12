package services

import (
	"iter"
	"slices"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NormalisePercentage devuelve la variación porcentual de a hacia b, redondeada a 2 decimales.
// Desde 0 la variación es 100 si b creció y 0 en otro caso.
func NormalisePercentage(a, b decimal.Decimal) decimal.Decimal {
	if a.IsZero() {
		if b.GreaterThan(decimal.Zero) {
			return hundred
		}
		return decimal.Zero
	}
	return b.Sub(a).Div(a).Mul(hundred).Round(2)
}

func sortByRecordedAt(values []models.AssetValue) []models.AssetValue {
	sorted := slices.Clone(values)
	slices.SortStableFunc(sorted, func(a, b models.AssetValue) int {
		return a.RecordedAt.Compare(b.RecordedAt)
	})
	return sorted
}

// CalculateAssetsChange compara el primer y el último valor por fecha.
func CalculateAssetsChange(values []models.AssetValue) models.AssetsChange {
	if len(values) == 0 {
		return models.AssetsChange{
			StartValue:       decimal.Zero,
			Value:            decimal.Zero,
			CurrencyChange:   decimal.Zero,
			PercentageChange: decimal.Zero,
		}
	}
	sorted := sortByRecordedAt(values)
	first, last := sorted[0], sorted[len(sorted)-1]
	start, end := first.RecordedAt, last.RecordedAt
	return models.AssetsChange{
		StartDate:        &start,
		EndDate:          &end,
		StartValue:       first.Value,
		Value:            last.Value,
		CurrencyChange:   last.Value.Sub(first.Value),
		PercentageChange: NormalisePercentage(first.Value, last.Value),
	}
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func synthetic(from models.AssetValue, at time.Time) models.AssetValue {
	from.ID = ""
	from.RecordedAt = at
	from.Synthetic = true
	return from
}

// StreamValuesForRange recorta una serie ordenada al rango y completa los bordes:
//   - sin valor el día de inicio se emite un punto sintético en r.Start con el último
//     valor anterior, o 0 si no hay ninguno;
//   - un valor del día de fin se emite y termina la serie;
//   - el primer valor posterior al fin se reemplaza por un punto sintético en r.End con
//     el último valor visto, y lo mismo si la serie se agota antes.
//
// Una serie vacía produce una serie vacía.
func StreamValuesForRange(r models.DateRange) func(iter.Seq[models.AssetValue]) iter.Seq[models.AssetValue] {
	return func(values iter.Seq[models.AssetValue]) iter.Seq[models.AssetValue] {
		return func(yield func(models.AssetValue) bool) {
			var last *models.AssetValue
			var beforeStart *models.AssetValue
			startDone := r.Start == nil

			emit := func(v models.AssetValue) bool {
				last = &v
				return yield(v)
			}

			for v := range values {
				if r.Start != nil && v.RecordedAt.Before(*r.Start) && !sameUTCDay(v.RecordedAt, *r.Start) {
					beforeStart = &v
					continue
				}

				if !startDone {
					startDone = true
					if !sameUTCDay(v.RecordedAt, *r.Start) {
						start := synthetic(models.AssetValue{AssetID: v.AssetID, Value: decimal.Zero}, *r.Start)
						if beforeStart != nil {
							start = synthetic(*beforeStart, *r.Start)
						}
						if !emit(start) {
							return
						}
					}
				}

				if r.End != nil {
					if sameUTCDay(v.RecordedAt, *r.End) {
						emit(v)
						return
					}
					if v.RecordedAt.After(*r.End) {
						end := synthetic(models.AssetValue{AssetID: v.AssetID, Value: decimal.Zero}, *r.End)
						if last != nil {
							end = synthetic(*last, *r.End)
						}
						yield(end)
						return
					}
				}

				if !emit(v) {
					return
				}
			}

			// todos los valores eran anteriores al inicio
			if !startDone && beforeStart != nil {
				if !emit(synthetic(*beforeStart, *r.Start)) {
					return
				}
			}
			if r.End != nil && last != nil {
				yield(synthetic(*last, *r.End))
			}
		}
	}
}

// MergeSortedHistories mezcla series ordenadas en una sola ordenada por fecha;
// los empates se resuelven por id de activo.
func MergeSortedHistories(histories ...iter.Seq[models.AssetValue]) iter.Seq[models.AssetValue] {
	return func(yield func(models.AssetValue) bool) {
		type head struct {
			next  func() (models.AssetValue, bool)
			value models.AssetValue
			ok    bool
		}
		heads := make([]*head, 0, len(histories))
		for _, h := range histories {
			next, stop := iter.Pull(h)
			defer stop()
			v, ok := next()
			heads = append(heads, &head{next: next, value: v, ok: ok})
		}

		for {
			var best *head
			for _, h := range heads {
				if h.ok && (best == nil || valueBefore(h.value, best.value)) {
					best = h
				}
			}
			if best == nil {
				return
			}
			if !yield(best.value) {
				return
			}
			best.value, best.ok = best.next()
		}
	}
}

func valueBefore(a, b models.AssetValue) bool {
	if !a.RecordedAt.Equal(b.RecordedAt) {
		return a.RecordedAt.Before(b.RecordedAt)
	}
	return a.AssetID < b.AssetID
}

func rangeStream(asset models.AssetWithHistory, r models.DateRange) iter.Seq[models.AssetValue] {
	return StreamValuesForRange(r)(slices.Values(sortByRecordedAt(asset.History)))
}

// AssetChangeForRange es la variación de un activo dentro del rango.
func AssetChangeForRange(history []models.AssetValue, r models.DateRange) models.AssetsChange {
	values := slices.Collect(StreamValuesForRange(r)(slices.Values(sortByRecordedAt(history))))
	return CalculateAssetsChange(values)
}

// PortfolioValueHistory suma el último valor conocido de cada activo y agrupa por día UTC.
func PortfolioValueHistory(assets []models.AssetWithHistory, r models.DateRange) []models.PortfolioHistoryPoint {
	streams := make([]iter.Seq[models.AssetValue], 0, len(assets))
	for _, asset := range assets {
		streams = append(streams, rangeStream(asset, r))
	}

	latest := map[string]decimal.Decimal{}
	total := decimal.Zero
	points := []models.PortfolioHistoryPoint{}

	for v := range MergeSortedHistories(streams...) {
		previous := latest[v.AssetID]
		change := v.Value.Sub(previous)
		latest[v.AssetID] = v.Value
		total = total.Add(change)

		y, m, d := v.RecordedAt.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		entry := models.PortfolioChange{AssetID: v.AssetID, PreviousValue: previous, NewValue: v.Value, Change: change}

		if n := len(points); n > 0 && points[n-1].Date.Equal(day) {
			points[n-1].Value = total
			points[n-1].Changes = append(points[n-1].Changes, entry)
			continue
		}
		points = append(points, models.PortfolioHistoryPoint{Date: day, Value: total, Changes: []models.PortfolioChange{entry}})
	}
	return points
}

// PortfolioOverview combina la variación de cada activo en el rango. El valor inicial es
// el del activo con la fecha de inicio más temprana, sumando los que empiezan a la vez.
func PortfolioOverview(assets []models.AssetWithHistory, r models.DateRange) models.AssetsChange {
	now := time.Now().UTC()
	start, end := now, now
	if r.Start != nil {
		start = *r.Start
	}
	if r.End != nil {
		end = *r.End
	}
	acc := models.AssetsChange{
		StartDate:        &start,
		EndDate:          &end,
		StartValue:       decimal.Zero,
		Value:            decimal.Zero,
		CurrencyChange:   decimal.Zero,
		PercentageChange: decimal.Zero,
	}

	for _, asset := range assets {
		change := AssetChangeForRange(asset.History, r)
		acc.Value = acc.Value.Add(change.Value)
		if change.StartDate == nil {
			// activo sin historial
			continue
		}
		switch {
		case change.StartDate.Before(*acc.StartDate):
			acc.StartDate = change.StartDate
			acc.StartValue = change.StartValue
		case change.StartDate.Equal(*acc.StartDate):
			acc.StartValue = acc.StartValue.Add(change.StartValue)
		}
		if change.EndDate.After(*acc.EndDate) {
			acc.EndDate = change.EndDate
		}
	}

	acc.CurrencyChange = acc.Value.Sub(acc.StartValue)
	acc.PercentageChange = NormalisePercentage(acc.StartValue, acc.Value)
	return acc
}
