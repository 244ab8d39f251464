package bom

import (
	"context"

	"go.uber.org/zap"

	"github.com/cassidypignatello/bangun/internal/model"
	"github.com/cassidypignatello/bangun/internal/resolver"
)

// DefaultLaborPct is the flat labor heuristic applied on top of the
// material total.
const DefaultLaborPct = 0.30

// StatusSearching is the progress source reported while an item is being
// resolved, before a real price source is known.
const StatusSearching = "searching"

// ProgressFunc receives enrichment progress: the 1-based item index, the
// total item count, the material's display name and either
// StatusSearching or the resolved price source. Best-effort; a panicking
// sink never disturbs resolution.
type ProgressFunc func(current, total int, materialName, source string)

// Enricher walks a BOM sequentially and prices every line item. Sequential
// on purpose: live scraping is rate- and cost-limited upstream, so items
// must not race each other.
type Enricher struct {
	resolver *resolver.Resolver
	laborPct float64
}

// NewEnricher builds an Enricher. A non-positive laborPct selects the
// default.
func NewEnricher(r *resolver.Resolver, laborPct float64) *Enricher {
	if laborPct <= 0 {
		laborPct = DefaultLaborPct
	}
	return &Enricher{resolver: r, laborPct: laborPct}
}

// EnrichAll resolves a price for every material in order. Cancellation is
// honored between items and returns the decisions made so far alongside the
// context error. A single item's failure never aborts the batch; the item
// degrades to the estimate path with its source and confidence disclosing
// that.
func (e *Enricher) EnrichAll(ctx context.Context, materials []model.MaterialRequest, onProgress ProgressFunc) ([]model.PriceDecision, error) {
	decisions := make([]model.PriceDecision, 0, len(materials))
	total := len(materials)

	for i, m := range materials {
		if err := ctx.Err(); err != nil {
			return decisions, err
		}

		emitProgress(onProgress, i+1, total, m.DisplayName(), StatusSearching)

		d := e.resolveSafe(ctx, m)
		decisions = append(decisions, d)

		emitProgress(onProgress, i+1, total, m.DisplayName(), string(d.Source))

		zap.L().Info("material priced",
			zap.String("material", m.Name),
			zap.String("source", string(d.Source)),
			zap.Int64("unit_price_idr", d.UnitPriceIDR),
			zap.Float64("confidence", d.Confidence),
		)
	}

	return decisions, nil
}

// resolveSafe contains a resolver panic to the one item it broke.
func (e *Enricher) resolveSafe(ctx context.Context, m model.MaterialRequest) (d model.PriceDecision) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("resolution panicked, using estimate",
				zap.String("material", m.Name),
				zap.Any("panic", rec),
			)
			d = e.resolver.Estimate(m)
		}
	}()
	return e.resolver.Resolve(ctx, m)
}

// Summary totals a priced BOM: the material sum, the flat-percentage labor
// heuristic and their grand total.
type Summary struct {
	MaterialTotal int64 `json:"material_total_idr"`
	LaborTotal    int64 `json:"labor_total_idr"`
	GrandTotal    int64 `json:"grand_total_idr"`
}

// Summarize computes totals over the decisions.
func (e *Enricher) Summarize(decisions []model.PriceDecision) Summary {
	var materialTotal int64
	for _, d := range decisions {
		materialTotal += d.TotalPriceIDR
	}
	laborTotal := int64(float64(materialTotal) * e.laborPct)
	return Summary{
		MaterialTotal: materialTotal,
		LaborTotal:    laborTotal,
		GrandTotal:    materialTotal + laborTotal,
	}
}

// emitProgress shields resolution from a faulty sink.
func emitProgress(fn ProgressFunc, current, total int, name, source string) {
	if fn == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Warn("progress sink panicked", zap.Any("panic", rec))
		}
	}()
	fn(current, total, name, source)
}
