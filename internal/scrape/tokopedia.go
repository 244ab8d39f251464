package scrape

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cassidypignatello/bangun/internal/marketplace"
	"github.com/cassidypignatello/bangun/internal/model"
	"github.com/cassidypignatello/bangun/internal/resilience"
	"github.com/cassidypignatello/bangun/pkg/apify"
)

// DefaultActorID is the pay-per-result Tokopedia search actor.
const DefaultActorID = "fatihtahta~tokopedia-scraper"

// actorFetchLimit is how many results each actor run requests. The actor
// bills per result, so this caps cost while leaving headroom for quality
// filtering to discard outliers.
const actorFetchLimit = 10

// TokopediaScraper runs the Apify actor behind a rate limiter, a retry
// policy, and a circuit breaker.
type TokopediaScraper struct {
	client  apify.Client
	actorID string
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// TokopediaOption configures a TokopediaScraper.
type TokopediaOption func(*TokopediaScraper)

// WithActorID overrides the default actor.
func WithActorID(id string) TokopediaOption {
	return func(s *TokopediaScraper) { s.actorID = id }
}

// WithLimiter replaces the default request limiter.
func WithLimiter(l *rate.Limiter) TokopediaOption {
	return func(s *TokopediaScraper) { s.limiter = l }
}

// WithBreaker replaces the default circuit breaker, letting callers share
// one breaker across scraper instances.
func WithBreaker(cb *resilience.CircuitBreaker) TokopediaOption {
	return func(s *TokopediaScraper) { s.breaker = cb }
}

// NewTokopediaScraper wraps an Apify client as a Scraper. The default
// limiter allows one actor run per second with a small burst, which keeps a
// sequential BOM enrichment loop under the actor's concurrency cap.
func NewTokopediaScraper(client apify.Client, opts ...TokopediaOption) *TokopediaScraper {
	s := &TokopediaScraper{
		client:  client,
		actorID: DefaultActorID,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:   resilience.ScrapeRetryConfig(),
	}
	s.retry.OnRetry = resilience.RetryLogger("apify", "run actor")
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokopediaScraper) Source() model.PriceSource {
	return model.SourceTokopedia
}

// Search runs the actor for one query and returns up to maxResults raw
// listings. Transient actor failures are retried once; repeated failures
// trip the breaker so later materials in the batch fail fast.
func (s *TokopediaScraper) Search(ctx context.Context, query string, maxResults int) ([]marketplace.RawListing, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, eris.New("scrape: empty search query")
	}
	if maxResults <= 0 {
		maxResults = actorFetchLimit
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "scrape: rate limit wait")
	}

	input := map[string]any{
		"queries":        []string{query},
		"limit":          actorFetchLimit,
		"includeDetails": false,
		"includeReviews": false,
	}

	items, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) ([]map[string]any, error) {
		return resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]map[string]any, error) {
			return s.client.RunActorSync(ctx, s.actorID, input)
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "scrape: tokopedia search "+query)
	}

	zap.L().Debug("actor run complete",
		zap.String("query", query),
		zap.Int("items", len(items)),
	)

	listings := make([]marketplace.RawListing, 0, maxResults)
	for _, item := range items {
		listings = append(listings, marketplace.RawListing(item))
		if len(listings) >= maxResults {
			break
		}
	}
	return listings, nil
}

// SearchURL builds the public search URL recorded on cached price records.
func SearchURL(query string) string {
	return "https://www.tokopedia.com/search?q=" + url.QueryEscape(strings.TrimSpace(query))
}
