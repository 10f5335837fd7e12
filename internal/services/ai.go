package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var (
	ErrInvalidImageFormat = errors.New("Invalid image format. Please provide a base64 encoded image.")
	ErrInvalidImageData   = errors.New("Invalid image data format.")
)

// Generator es la parte del modelo que usamos: un prompt de sistema más partes, respuesta JSON.
type Generator interface {
	GenerateJSON(ctx context.Context, system string, parts ...*genai.Part) (string, error)
}

// Gemini implementa Generator con google.golang.org/genai.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) GenerateJSON(ctx context.Context, system string, parts ...*genai.Part) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// AIService agrupa las funciones que dependen del modelo: OCR de capturas y sugerencias.
type AIService struct {
	gen Generator
}

func NewAIService(gen Generator) *AIService {
	return &AIService{gen: gen}
}

// ParseImageDataURL separa un data URL "data:image/png;base64,..." en tipo MIME y bytes.
func ParseImageDataURL(dataURL string) (string, []byte, error) {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return "", nil, ErrInvalidImageFormat
	}
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || payload == "" {
		return "", nil, ErrInvalidImageData
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return "", nil, ErrInvalidImageData
	}
	return mime, data, nil
}

const extractPrompt = `You read screenshots of investment and bank account dashboards.
Return a JSON array. Each element is an object with:
- "accountName": the account or product name as shown
- "amount": the current balance as a number, without currency symbols or thousands separators
- "confidence": a number between 0 and 1
- "accountType": one of ISA, CISA, SIPP, LISA, GIA when it is visible, otherwise omit it
Return [] when no balances are visible.`

// ExtractValues lee los saldos de una captura de pantalla.
func (s *AIService) ExtractValues(ctx context.Context, imageData string, providerNames []string) ([]models.ExtractedAmount, error) {
	mime, data, err := ParseImageDataURL(imageData)
	if err != nil {
		return nil, err
	}

	system := extractPrompt
	if len(providerNames) > 0 {
		system += "\nThe screenshot is most likely from one of: " + strings.Join(providerNames, ", ") + "."
	}

	text, err := s.gen.GenerateJSON(ctx, system,
		&genai.Part{InlineData: &genai.Blob{Data: data, MIMEType: mime}},
		&genai.Part{Text: "Extract the account balances from this screenshot."},
	)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}
	return parseExtractedAmounts(text)
}

type rawAmount struct {
	AccountName string   `json:"accountName"`
	Amount      *float64 `json:"amount"`
	Confidence  *float64 `json:"confidence"`
	AccountType string   `json:"accountType"`
}

// parseExtractedAmounts descarta los elementos que no tienen la forma esperada.
func parseExtractedAmounts(text string) ([]models.ExtractedAmount, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(text)), &items); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}

	out := make([]models.ExtractedAmount, 0, len(items))
	for _, raw := range items {
		var item rawAmount
		if err := json.Unmarshal(raw, &item); err != nil {
			zap.L().Debug("elemento descartado", zap.Error(err))
			continue
		}
		if strings.TrimSpace(item.AccountName) == "" || item.Amount == nil || item.Confidence == nil {
			continue
		}
		if *item.Confidence < 0 || *item.Confidence > 1 {
			continue
		}
		if item.AccountType != "" && !models.ValidAccountType(item.AccountType) {
			item.AccountType = ""
		}
		out = append(out, models.ExtractedAmount{
			AccountName: strings.TrimSpace(item.AccountName),
			Amount:      *item.Amount,
			Confidence:  *item.Confidence,
			AccountType: item.AccountType,
		})
	}
	return out, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// MilestoneSuggestion es una meta propuesta por el modelo.
type MilestoneSuggestion struct {
	Name        string          `json:"name"`
	AccountType *string         `json:"accountType"`
	TargetValue decimal.Decimal `json:"targetValue"`
	Description string          `json:"description"`
	Icon        string          `json:"icon,omitempty"`
}

const maxSuggestions = 5

const suggestPrompt = `You are a financial advisor specialized in helping people set and track investment goals.
Suggest 3-5 realistic and achievable milestone goals. Do not repeat existing milestones.
Return a JSON object {"suggestions":[{"name":string,"accountType":"ISA"|"SIPP"|"LISA"|"GIA"|null,"targetValue":"numeric string","description":string,"icon":emoji}]}.`

// SuggestMilestones propone metas a partir de los activos y las metas que ya existen.
func (s *AIService) SuggestMilestones(ctx context.Context, assets []models.BrokerAsset, total decimal.Decimal, existing []models.Milestone, currency string) ([]MilestoneSuggestion, error) {
	var b strings.Builder
	b.WriteString("Current portfolio:\n")
	for _, a := range assets {
		provider := a.ProviderID
		if a.Provider != nil {
			provider = a.Provider.Name
		}
		fmt.Fprintf(&b, "- %s %s account: %s\n", provider, a.AccountType, FormatMoney(a.CurrentValue, currency))
	}
	fmt.Fprintf(&b, "Total portfolio value: %s\n\nExisting milestones:\n", FormatMoney(total, currency))
	if len(existing) == 0 {
		b.WriteString("None\n")
	}
	for _, m := range existing {
		line := "- " + m.Name + ": " + FormatMoney(m.TargetValue, currency)
		if m.AccountType != nil {
			line += " (" + *m.AccountType + ")"
		}
		b.WriteString(line + "\n")
	}

	text, err := s.gen.GenerateJSON(ctx, suggestPrompt, &genai.Part{Text: b.String()})
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	return parseSuggestions(text)
}

// parseSuggestions descarta las metas sin nombre o sin objetivo positivo y se queda con las primeras cinco.
func parseSuggestions(text string) ([]MilestoneSuggestion, error) {
	var resp struct {
		Suggestions []json.RawMessage `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &resp); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}

	out := make([]MilestoneSuggestion, 0, min(len(resp.Suggestions), maxSuggestions))
	for _, raw := range resp.Suggestions {
		if len(out) == maxSuggestions {
			break
		}
		var item MilestoneSuggestion
		if err := json.Unmarshal(raw, &item); err != nil {
			zap.L().Debug("sugerencia descartada", zap.Error(err))
			continue
		}
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" || !item.TargetValue.IsPositive() {
			continue
		}
		if item.AccountType != nil && !models.ValidAccountType(*item.AccountType) {
			item.AccountType = nil
		}
		out = append(out, item)
	}
	return out, nil
}
