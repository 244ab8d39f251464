package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cassidypignatello/bangun/pkg/anthropic"
)

// TermEnhancer rewrites a material name into the search term Indonesian
// marketplace shoppers actually type. Best-effort: callers fall back to the
// original name on any failure.
type TermEnhancer interface {
	Enhance(ctx context.Context, name string) (string, error)
}

// NoopEnhancer returns the name unchanged. Used when no API key is
// configured.
type NoopEnhancer struct{}

func (NoopEnhancer) Enhance(_ context.Context, name string) (string, error) {
	return name, nil
}

const enhancePrompt = `Convert this construction material into a Tokopedia search term that Indonesian shoppers actually use.

Material: %s

Rules:
- Use Indonesian words (keramik, semen, besi, pipa, cat)
- Maximum 3-4 words
- Include brand if common (Dulux, Tiga Roda, Wavin)
- Include size only if essential (40x40, 12mm, 4 inch)
- Remove technical specs (MPa, PSI, Grade A)
- Remove English words

Examples:
- "Campuran Beton 25 MPa" → "Semen 50kg"
- "Membran Waterproofing Bitumen" → "Waterproofing"
- "Ceramic Tiles 40x40cm Grade A" → "Keramik 40x40"
- "PVC Pipe 4 inch Schedule 40" → "Pipa PVC 4 inch"

Return ONLY the search term, nothing else.`

// LLMEnhancer asks the model for a marketplace-friendly search term.
type LLMEnhancer struct {
	client anthropic.Client
	model  string
}

// NewLLMEnhancer builds an enhancer over the given client and model ID.
func NewLLMEnhancer(client anthropic.Client, model string) *LLMEnhancer {
	return &LLMEnhancer{client: client, model: model}
}

func (e *LLMEnhancer) Enhance(ctx context.Context, name string) (string, error) {
	temp := 0.2
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   30,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(enhancePrompt, name)},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "resolver: enhance search term")
	}

	enhanced := strings.Trim(strings.TrimSpace(resp.Text()), `"'`)
	if enhanced == "" {
		return "", eris.New("resolver: empty enhancement response")
	}
	return enhanced, nil
}
