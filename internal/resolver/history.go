package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/cassidypignatello/bangun/internal/model"
	"github.com/cassidypignatello/bangun/internal/textnorm"
)

// Historical matching thresholds. An exact-tier match is trusted almost as
// much as a cache hit; a fuzzy-tier match is still preferred over paying for
// a live scrape.
const (
	historyCandidates = 20
	exactThreshold    = 0.95
	fuzzyThreshold    = 0.90
)

// historicalMatch searches persisted records by substring and returns the
// one most similar to name across both display-name fields. Records without
// a usable price never match. Store failures degrade to "no match"; the
// chain continues toward the live stages.
func (r *Resolver) historicalMatch(ctx context.Context, name string) (*model.PriceRecord, float64) {
	records, err := r.store.SearchMaterials(ctx, name, historyCandidates)
	if err != nil {
		zap.L().Warn("historical material search failed",
			zap.String("material", name),
			zap.Error(err),
		)
		return nil, 0
	}

	var (
		best    *model.PriceRecord
		bestSim float64
	)
	for i := range records {
		rec := &records[i]
		if rec.PriceAvg <= 0 {
			continue
		}
		sim := textnorm.Similarity(name, rec.NameID)
		if s := textnorm.Similarity(name, rec.NameEN); s > sim {
			sim = s
		}
		if sim > bestSim {
			best, bestSim = rec, sim
		}
	}
	return best, bestSim
}
