// Package bom generates bills of materials from project descriptions and
// enriches them with resolved prices.
package bom

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bangun/internal/model"
	"github.com/cassidypignatello/bangun/pkg/anthropic"
)

// systemPrompt is a constant so the provider can cache it across requests.
const systemPrompt = `You are an expert construction cost estimator specializing in Bali, Indonesia.

Your task is to generate a detailed Bill of Materials (BOM) for construction and renovation projects.

Guidelines:
1. Break down projects into specific materials with realistic quantities
2. Use standard Indonesian construction units (m2, pcs, kg, liter, etc.)
3. Consider Bali-specific climate, regulations, and construction practices
4. Include all necessary materials: structural, finishing, electrical, plumbing
5. Be comprehensive but avoid redundancy

CRITICAL - Material Naming Rules (BILINGUAL OUTPUT REQUIRED):
1. material_name: INDONESIAN product names for Tokopedia marketplace search
   - Use common brand names or generic Indonesian terms (e.g., "Semen Tiga Roda" not "Portland Cement Type I")
   - Keep names SHORT (2-4 words maximum) - avoid long technical descriptions
   - Use Indonesian spelling: "keramik" not "ceramic", "besi" not "iron", "pipa" not "pipe"
   - Include size/spec ONLY if commonly searched (e.g., "Besi Beton 10mm")
   - GOOD: "Semen 50kg", "Keramik 40x40", "Besi Beton 12mm", "Cat Tembok Dulux"
   - BAD: "Campuran Beton 25 MPa", "Membran Waterproofing Bitumen 1mm"

2. english_name: ENGLISH translation for international users
   - Clear, descriptive English name that explains what the material is
   - GOOD: "Cement 50kg Bag", "Ceramic Floor Tiles 40x40cm", "Steel Rebar 12mm", "Wall Paint (Dulux)"

Output Format:
Return ONLY a JSON array of materials with this structure:
[
  {
    "material_name": "Keramik 40x40",
    "english_name": "Ceramic Floor Tiles 40x40cm",
    "quantity": 25.0,
    "unit": "m2",
    "category": "finishing"
  }
]

Categories: structural, finishing, electrical, plumbing, hvac, landscaping, fixtures, miscellaneous`

// Generator produces material lists from free-text project descriptions.
type Generator struct {
	client anthropic.Client
	model  string
}

// NewGenerator builds a Generator over the given client and model ID.
func NewGenerator(client anthropic.Client, model string) *Generator {
	return &Generator{client: client, model: model}
}

// Generate asks the model for a bill of materials. Items with non-positive
// quantities are dropped with a warning; downstream resolution assumes
// positivity.
func (g *Generator) Generate(ctx context.Context, description string) ([]model.MaterialRequest, error) {
	temp := 0.7
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: 2000,
		System: []anthropic.SystemBlock{
			{Text: systemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Generate a Bill of Materials for this Bali construction/renovation project:\n\n%s", description)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "bom: generate")
	}
	resp.Usage.LogCost(g.model, "bom_generation")

	materials, err := ParseMaterials(resp.Text())
	if err != nil {
		return nil, err
	}
	if len(materials) == 0 {
		return nil, eris.New("bom: model returned no usable materials")
	}
	return materials, nil
}

// ParseMaterials decodes a model response into material requests. Accepts
// either a bare JSON array or an object wrapping it under "materials", with
// or without markdown code fences. Non-positive quantities are dropped.
func ParseMaterials(raw string) ([]model.MaterialRequest, error) {
	payload := stripCodeFence(raw)

	var items []model.MaterialRequest
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		var wrapped struct {
			Materials []model.MaterialRequest `json:"materials"`
		}
		if err2 := json.Unmarshal([]byte(payload), &wrapped); err2 != nil {
			return nil, eris.Wrap(err, "bom: parse materials")
		}
		items = wrapped.Materials
	}

	out := make([]model.MaterialRequest, 0, len(items))
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		if item.Quantity <= 0 {
			zap.L().Warn("dropping material with non-positive quantity",
				zap.String("material", item.Name),
				zap.Float64("quantity", item.Quantity),
			)
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
