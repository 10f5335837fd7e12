package services

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text   string
	err    error
	system string
	parts  []*genai.Part
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, system string, parts ...*genai.Part) (string, error) {
	f.system = system
	f.parts = parts
	return f.text, f.err
}

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))
}

func TestParseImageDataURL(t *testing.T) {
	_, _, err := ParseImageDataURL("hello")
	assert.ErrorIs(t, err, ErrInvalidImageFormat)

	_, _, err = ParseImageDataURL("data:image/png;base64,")
	assert.ErrorIs(t, err, ErrInvalidImageData)

	mime, data, err := ParseImageDataURL(pngDataURL())
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte("\x89PNG fake"), data)
}

func TestExtractValuesDropsInvalidItems(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n" + `[
		{"accountName":"Stocks ISA","amount":12345.67,"confidence":0.93,"accountType":"ISA"},
		{"accountName":"","amount":10,"confidence":0.5},
		{"accountName":"Pension","amount":"lots","confidence":0.5},
		{"accountName":"Cash","amount":100,"confidence":1.7},
		{"accountName":"GIA","amount":50,"confidence":0.4,"accountType":"CRYPTO"}
	]` + "\n```"}
	svc := NewAIService(gen)

	got, err := svc.ExtractValues(context.Background(), pngDataURL(), []string{"Vanguard"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.ExtractedAmount{AccountName: "Stocks ISA", Amount: 12345.67, Confidence: 0.93, AccountType: "ISA"}, got[0])
	assert.Equal(t, "", got[1].AccountType)

	assert.Contains(t, gen.system, "Vanguard")
	require.Len(t, gen.parts, 2)
	assert.Equal(t, "image/png", gen.parts[0].InlineData.MIMEType)
}

func TestExtractValuesGeneratorFailure(t *testing.T) {
	svc := NewAIService(&fakeGenerator{err: errors.New("quota")})
	_, err := svc.ExtractValues(context.Background(), pngDataURL(), nil)
	assert.Error(t, err)
}

func TestSuggestMilestones(t *testing.T) {
	gen := &fakeGenerator{text: `{"suggestions":[{"name":"First £50k","accountType":null,"targetValue":"50000","description":"Halfway","icon":"🎯"}]}`}
	svc := NewAIService(gen)

	isa := "ISA"
	got, err := svc.SuggestMilestones(context.Background(),
		[]models.BrokerAsset{{ProviderID: "vanguard", AccountType: "ISA", CurrentValue: decimal.NewFromInt(20000)}},
		decimal.NewFromInt(20000),
		[]models.Milestone{{Name: "ISA 25k", TargetValue: decimal.NewFromInt(25000), AccountType: &isa}},
		"GBP")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].AccountType)
	assert.True(t, got[0].TargetValue.Equal(decimal.NewFromInt(50000)))
	assert.Contains(t, gen.parts[0].Text, "£20,000.00")
	assert.Contains(t, gen.parts[0].Text, "ISA 25k: £25,000.00 (ISA)")
}

func TestSuggestMilestonesDropsInvalidAndCaps(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n" + `{"suggestions":[
		{"name":"  ","targetValue":"1000"},
		{"name":"Zero","targetValue":"0"},
		{"name":"Negative","targetValue":"-500"},
		{"name":"Broken","targetValue":"lots"},
		{"name":" ISA 30k ","accountType":"ISA","targetValue":"30000"},
		{"name":"Bitcoin","accountType":"CRYPTO","targetValue":"10000"},
		{"name":"SIPP 100k","accountType":"SIPP","targetValue":"100000"},
		{"name":"GIA 5k","accountType":"GIA","targetValue":"5000"},
		{"name":"LISA 20k","accountType":"LISA","targetValue":"20000"},
		{"name":"Sixth","targetValue":"60000"}
	]}` + "\n```"}
	svc := NewAIService(gen)

	got, err := svc.SuggestMilestones(context.Background(), nil, decimal.Zero, nil, "GBP")
	require.NoError(t, err)
	require.Len(t, got, 5)

	var names []string
	for _, s := range got {
		names = append(names, s.Name)
		assert.True(t, s.TargetValue.IsPositive(), s.Name)
	}
	assert.Equal(t, []string{"ISA 30k", "Bitcoin", "SIPP 100k", "GIA 5k", "LISA 20k"}, names)
	assert.Nil(t, got[1].AccountType)
	require.NotNil(t, got[0].AccountType)
	assert.Equal(t, "ISA", *got[0].AccountType)
}
