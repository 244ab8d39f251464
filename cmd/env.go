package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bangun/internal/bom"
	"github.com/cassidypignatello/bangun/internal/pricecache"
	"github.com/cassidypignatello/bangun/internal/resolver"
	"github.com/cassidypignatello/bangun/internal/scrape"
	"github.com/cassidypignatello/bangun/internal/store"
	"github.com/cassidypignatello/bangun/pkg/anthropic"
	"github.com/cassidypignatello/bangun/pkg/apify"
)

// appEnv holds the initialized store, clients and services shared by the
// estimate, price, refresh and serve commands.
type appEnv struct {
	Store     store.Store
	Cache     *pricecache.Cache
	Resolver  *resolver.Resolver
	Enricher  *bom.Enricher
	Generator *bom.Generator // nil without an Anthropic key
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, the scraping backend, the tiered cache and the
// resolution services. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var scraper scrape.Scraper
	if cfg.Scrape.UseMock {
		scraper = scrape.NewMockScraper()
		zap.L().Info("using mock scraper, prices are synthetic")
	} else {
		scraper = scrape.NewTokopediaScraper(
			apify.NewClient(cfg.Apify.Token),
			scrape.WithActorID(cfg.Apify.ActorID),
		)
	}

	cache := pricecache.New(st, scraper)
	cache.StartSweeper(ctx)

	table, err := resolver.LoadFallbackTable()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var (
		enhancer  resolver.TermEnhancer = resolver.NoopEnhancer{}
		generator *bom.Generator
	)
	if cfg.Anthropic.Key != "" {
		llm := anthropic.NewClient(cfg.Anthropic.Key)
		enhancer = resolver.NewLLMEnhancer(llm, cfg.Anthropic.HaikuModel)
		generator = bom.NewGenerator(llm, cfg.Anthropic.SonnetModel)
	} else {
		zap.L().Warn("BANGUN_ANTHROPIC_KEY not set, BOM generation disabled and search terms unenhanced")
	}

	res := resolver.New(st, cache, enhancer, table)

	return &appEnv{
		Store:     st,
		Cache:     cache,
		Resolver:  res,
		Enricher:  bom.NewEnricher(res, cfg.BOM.LaborPct),
		Generator: generator,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
