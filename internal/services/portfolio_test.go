package services

import (
	"slices"
	"testing"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
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

func ptr[T any](v T) *T { return &v }

// mockHistory genera valores cada intervalDays entre start y end.
func mockHistory(id, start, end string, intervalDays int, valueFn func(i int) int64) []models.AssetValue {
	var out []models.AssetValue
	for i, t := 0, day(start); !t.After(day(end)); i, t = i+1, t.AddDate(0, 0, intervalDays) {
		out = append(out, models.AssetValue{ID: id + "-v", AssetID: id, Value: decimal.NewFromInt(valueFn(i)), RecordedAt: t})
	}
	return out
}

func values(vs []models.AssetValue) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Value.String()
	}
	return out
}

func TestNormalisePercentage(t *testing.T) {
	d := decimal.NewFromInt
	assert.True(t, d(100).Equal(NormalisePercentage(d(0), d(5))))
	assert.True(t, d(0).Equal(NormalisePercentage(d(0), d(0))))
	assert.True(t, d(0).Equal(NormalisePercentage(d(0), d(-5))))
	assert.True(t, d(50).Equal(NormalisePercentage(d(100), d(150))))
	assert.Equal(t, "-33.33", NormalisePercentage(d(150), d(100)).String())
}

func TestCalculateAssetsChange(t *testing.T) {
	empty := CalculateAssetsChange(nil)
	assert.Nil(t, empty.StartDate)
	assert.Nil(t, empty.EndDate)
	assert.True(t, empty.Value.IsZero())

	change := CalculateAssetsChange([]models.AssetValue{
		{Value: decimal.NewFromInt(150), RecordedAt: day("2024-01-02")},
		{Value: decimal.NewFromInt(100), RecordedAt: day("2024-01-01")},
	})
	require.NotNil(t, change.StartDate)
	assert.Equal(t, day("2024-01-01"), *change.StartDate)
	assert.Equal(t, "100", change.StartValue.String())
	assert.Equal(t, "150", change.Value.String())
	assert.Equal(t, "50", change.CurrencyChange.String())
	assert.Equal(t, "50", change.PercentageChange.String())
}

func TestStreamValuesForRange(t *testing.T) {
	t.Run("no range passes values through", func(t *testing.T) {
		in := mockHistory("a1", "2024-01-01", "2024-01-02", 1, func(i int) int64 { return []int64{10, 20}[i] })
		out := slices.Collect(StreamValuesForRange(models.DateRange{})(slices.Values(in)))
		assert.Equal(t, []string{"10", "20"}, values(out))
	})

	t.Run("exact range", func(t *testing.T) {
		in := mockHistory("a1", "2024-01-01", "2024-01-03", 1, func(i int) int64 { return []int64{10, 20, 30}[i] })
		r := models.DateRange{Start: ptr(day("2024-01-02")), End: ptr(day("2024-01-03"))}
		out := slices.Collect(StreamValuesForRange(r)(slices.Values(in)))
		assert.Equal(t, []string{"20", "30"}, values(out))
		assert.False(t, out[0].Synthetic)
	})

	t.Run("synthetic boundaries", func(t *testing.T) {
		in := mockHistory("a1", "2024-01-02", "2024-01-04", 2, func(i int) int64 { return []int64{10, 20}[i] })
		r := models.DateRange{Start: ptr(day("2024-01-01")), End: ptr(day("2024-01-05"))}
		out := slices.Collect(StreamValuesForRange(r)(slices.Values(in)))
		require.Len(t, out, 4)
		assert.Equal(t, []string{"0", "10", "20", "20"}, values(out))
		assert.Equal(t, day("2024-01-01"), out[0].RecordedAt)
		assert.True(t, out[0].Synthetic)
		assert.Equal(t, "a1", out[0].AssetID)
		assert.Equal(t, day("2024-01-05"), out[3].RecordedAt)
		assert.True(t, out[3].Synthetic)
		assert.Equal(t, "a1", out[3].AssetID)
	})

	t.Run("value before start carries over", func(t *testing.T) {
		in := []models.AssetValue{
			{AssetID: "a1", Value: decimal.NewFromInt(5), RecordedAt: day("2023-12-01")},
			{AssetID: "a1", Value: decimal.NewFromInt(8), RecordedAt: day("2024-01-03")},
			{AssetID: "a1", Value: decimal.NewFromInt(99), RecordedAt: day("2024-02-01")},
		}
		r := models.DateRange{Start: ptr(day("2024-01-01")), End: ptr(day("2024-01-10"))}
		out := slices.Collect(StreamValuesForRange(r)(slices.Values(in)))
		assert.Equal(t, []string{"5", "8", "8"}, values(out))
		assert.Equal(t, day("2024-01-10"), out[2].RecordedAt)
	})

	t.Run("all values before start", func(t *testing.T) {
		in := []models.AssetValue{{AssetID: "a1", Value: decimal.NewFromInt(7), RecordedAt: day("2023-06-01")}}
		r := models.DateRange{Start: ptr(day("2024-01-01")), End: ptr(day("2024-01-10"))}
		out := slices.Collect(StreamValuesForRange(r)(slices.Values(in)))
		assert.Equal(t, []string{"7", "7"}, values(out))
	})

	t.Run("empty input", func(t *testing.T) {
		r := models.DateRange{Start: ptr(day("2024-01-01")), End: ptr(day("2024-01-02"))}
		out := slices.Collect(StreamValuesForRange(r)(slices.Values([]models.AssetValue{})))
		assert.Empty(t, out)
	})

	t.Run("stops early", func(t *testing.T) {
		in := mockHistory("a1", "2024-01-01", "2024-01-10", 1, func(i int) int64 { return int64(i) })
		n := 0
		for range StreamValuesForRange(models.DateRange{})(slices.Values(in)) {
			n++
			if n == 3 {
				break
			}
		}
		assert.Equal(t, 3, n)
	})
}

func TestMergeSortedHistories(t *testing.T) {
	t.Run("interleaved", func(t *testing.T) {
		a1 := mockHistory("a1", "2024-01-01", "2024-01-03", 2, func(i int) int64 { return []int64{10, 30}[i] })
		a2 := mockHistory("a2", "2024-01-02", "2024-01-04", 2, func(i int) int64 { return []int64{20, 40}[i] })
		out := slices.Collect(MergeSortedHistories(slices.Values(a1), slices.Values(a2)))
		assert.Equal(t, []string{"10", "20", "30", "40"}, values(out))

		ids := make([]string, len(out))
		for i, v := range out {
			ids[i] = v.AssetID
		}
		assert.Equal(t, []string{"a1", "a2", "a1", "a2"}, ids)
	})

	t.Run("ties by asset id", func(t *testing.T) {
		b := []models.AssetValue{{AssetID: "b", Value: decimal.NewFromInt(2), RecordedAt: day("2024-01-01")}}
		a := []models.AssetValue{{AssetID: "a", Value: decimal.NewFromInt(1), RecordedAt: day("2024-01-01")}}
		out := slices.Collect(MergeSortedHistories(slices.Values(b), slices.Values(a)))
		assert.Equal(t, []string{"1", "2"}, values(out))
	})

	t.Run("sparse and dense", func(t *testing.T) {
		sparse := []models.AssetValue{
			{AssetID: "sparse", Value: decimal.NewFromInt(100), RecordedAt: day("2020-01-01")},
			{AssetID: "sparse", Value: decimal.NewFromInt(200), RecordedAt: day("2030-01-01")},
		}
		dense := mockHistory("dense", "2025-01-01", "2025-01-03", 1, func(i int) int64 { return []int64{10, 20, 30}[i] })
		out := slices.Collect(MergeSortedHistories(slices.Values(sparse), slices.Values(dense)))
		assert.Equal(t, []string{"100", "10", "20", "30", "200"}, values(out))
	})

	t.Run("empty", func(t *testing.T) {
		out := slices.Collect(MergeSortedHistories(slices.Values([]models.AssetValue{})))
		assert.Empty(t, out)
	})
}

func TestPortfolioValueHistory(t *testing.T) {
	t.Run("single asset", func(t *testing.T) {
		asset := models.AssetWithHistory{ID: "asset-1", History: []models.AssetValue{
			{ID: "v2", AssetID: "asset-1", Value: decimal.NewFromInt(150), RecordedAt: day("2024-01-02")},
			{ID: "v1", AssetID: "asset-1", Value: decimal.NewFromInt(100), RecordedAt: day("2024-01-01")},
		}}
		points := PortfolioValueHistory([]models.AssetWithHistory{asset}, models.DateRange{})
		require.Len(t, points, 2)
		assert.Equal(t, day("2024-01-01"), points[0].Date)
		assert.Equal(t, "100", points[0].Value.String())
		assert.Equal(t, day("2024-01-02"), points[1].Date)
		assert.Equal(t, "150", points[1].Value.String())
	})

	t.Run("groups by day and sums assets", func(t *testing.T) {
		a := models.AssetWithHistory{ID: "a", History: []models.AssetValue{
			{AssetID: "a", Value: decimal.NewFromInt(100), RecordedAt: day("2024-01-01").Add(9 * time.Hour)},
			{AssetID: "a", Value: decimal.NewFromInt(120), RecordedAt: day("2024-01-02").Add(9 * time.Hour)},
		}}
		b := models.AssetWithHistory{ID: "b", History: []models.AssetValue{
			{AssetID: "b", Value: decimal.NewFromInt(50), RecordedAt: day("2024-01-01").Add(18 * time.Hour)},
		}}
		points := PortfolioValueHistory([]models.AssetWithHistory{a, b}, models.DateRange{})

		type flat struct {
			Date    string
			Value   string
			Changes []string
		}
		got := make([]flat, len(points))
		for i, p := range points {
			got[i] = flat{Date: p.Date.Format("2006-01-02"), Value: p.Value.String()}
			for _, c := range p.Changes {
				got[i].Changes = append(got[i].Changes, c.AssetID+":"+c.PreviousValue.String()+"->"+c.NewValue.String())
			}
		}
		want := []flat{
			{Date: "2024-01-01", Value: "150", Changes: []string{"a:0->100", "b:0->50"}},
			{Date: "2024-01-02", Value: "170", Changes: []string{"a:100->120"}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("portfolio history mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("range does not double count synthetic points", func(t *testing.T) {
		a := models.AssetWithHistory{ID: "a", History: mockHistory("a", "2024-01-02", "2024-01-04", 2, func(i int) int64 { return []int64{10, 20}[i] })}
		b := models.AssetWithHistory{ID: "b", History: []models.AssetValue{{AssetID: "b", Value: decimal.NewFromInt(5), RecordedAt: day("2023-12-01")}}}
		r := models.DateRange{Start: ptr(day("2024-01-01")), End: ptr(day("2024-01-05"))}
		points := PortfolioValueHistory([]models.AssetWithHistory{a, b}, r)
		require.NotEmpty(t, points)
		last := points[len(points)-1]
		assert.Equal(t, day("2024-01-05"), last.Date)
		assert.Equal(t, "25", last.Value.String())
		assert.Equal(t, "5", points[0].Value.String())
	})
}

func TestPortfolioOverview(t *testing.T) {
	r := models.DateRange{Start: ptr(day("2024-01-01")), End: ptr(day("2024-01-31"))}
	a := models.AssetWithHistory{ID: "a", History: []models.AssetValue{
		{AssetID: "a", Value: decimal.NewFromInt(100), RecordedAt: day("2023-12-15")},
		{AssetID: "a", Value: decimal.NewFromInt(150), RecordedAt: day("2024-01-20")},
	}}
	b := models.AssetWithHistory{ID: "b", History: []models.AssetValue{
		{AssetID: "b", Value: decimal.NewFromInt(100), RecordedAt: day("2023-11-01")},
	}}
	empty := models.AssetWithHistory{ID: "c"}

	overview := PortfolioOverview([]models.AssetWithHistory{a, b, empty}, r)
	require.NotNil(t, overview.StartDate)
	assert.Equal(t, day("2024-01-01"), *overview.StartDate)
	assert.Equal(t, day("2024-01-31"), *overview.EndDate)
	assert.Equal(t, "200", overview.StartValue.String())
	assert.Equal(t, "250", overview.Value.String())
	assert.Equal(t, "50", overview.CurrencyChange.String())
	assert.Equal(t, "25", overview.PercentageChange.String())
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "£1,234.50", FormatMoney(decimal.RequireFromString("1234.5"), "GBP"))
	assert.Equal(t, "$10.00", FormatMoney(decimal.NewFromInt(10), "USD"))
	assert.Equal(t, "£3.00", FormatMoney(decimal.NewFromInt(3), "NOPE"))

	pv := WithDisplay(models.AssetsChange{StartValue: decimal.NewFromInt(1), Value: decimal.NewFromInt(2), CurrencyChange: decimal.NewFromInt(1)}, "GBP")
	assert.Equal(t, "£2.00", pv.Display.Value)
}
