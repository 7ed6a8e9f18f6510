// Package reviews aggregates third-party video reviews for an assessment.
//
// Lookups go through a TTL cache keyed by a deterministic query string. The
// external provider is strictly supplementary: every provider failure is
// absorbed into an empty result and never fails the caller's request.
package reviews

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/apsara-ai/derma/internal/domain/model"
	"github.com/apsara-ai/derma/pkg/logger"
	"github.com/apsara-ai/derma/pkg/metrics"
)

// Default aggregator configuration constants.
const (
	defaultTTL        = time.Hour
	defaultTopK       = 2
	defaultMaxResults = 3
)

// Provider searches an external video source for skincare review content.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]model.Review, error)
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithTTL sets how long cached results stay fresh.
func WithTTL(ttl time.Duration) Option {
	return func(a *Aggregator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithTopK sets how many concerns contribute to the query key.
func WithTopK(k int) Option {
	return func(a *Aggregator) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithMaxResults caps the number of reviews fetched per query.
func WithMaxResults(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxResults = n
		}
	}
}

// WithLogger sets the logger used by the aggregator.
func WithLogger(log logger.Logger) Option {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}

// WithClock overrides the cache clock. Used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// Aggregator resolves reviews for an assessment, cache-first.
type Aggregator struct {
	provider   Provider
	cache      *ttlCache
	ttl        time.Duration
	topK       int
	maxResults int
	now        func() time.Time
	log        logger.Logger
}

// New creates an Aggregator backed by the given provider.
func New(provider Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		provider:   provider,
		ttl:        defaultTTL,
		topK:       defaultTopK,
		maxResults: defaultMaxResults,
		now:        time.Now,
		log:        logger.Named("reviews"),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.cache = newTTLCache(a.ttl, a.now)
	return a
}

// QueryKey builds the deterministic search query for an assessment: the
// skin type followed by the top-K concerns ordered by descending confidence,
// ties broken by ascending name.
func (a *Aggregator) QueryKey(assessment model.SkinAssessment) string {
	concerns := make([]model.Concern, len(assessment.Concerns))
	copy(concerns, assessment.Concerns)
	sort.Slice(concerns, func(i, j int) bool {
		if concerns[i].Confidence != concerns[j].Confidence {
			return concerns[i].Confidence > concerns[j].Confidence
		}
		return concerns[i].Name < concerns[j].Name
	})
	if len(concerns) > a.topK {
		concerns = concerns[:a.topK]
	}

	parts := []string{assessment.SkinType, "skin"}
	for _, c := range concerns {
		parts = append(parts, strings.ReplaceAll(c.Name, "_", " "))
	}
	parts = append(parts, "skincare routine review")
	return strings.Join(parts, " ")
}

// FindReviews returns cached or freshly fetched reviews for the assessment.
// Provider failures of any kind, including rate limits and timeouts, produce
// an empty result rather than an error.
func (a *Aggregator) FindReviews(ctx context.Context, assessment model.SkinAssessment) []model.Review {
	key := a.QueryKey(assessment)

	if cached, ok := a.cache.get(key); ok {
		metrics.RecordReviewCacheHit()
		return cached
	}
	metrics.RecordReviewCacheMiss()

	start := a.now()
	found, err := a.provider.Search(ctx, key, a.maxResults)
	metrics.RecordReviewProviderLatency(float64(a.now().Sub(start).Milliseconds()))
	if err != nil {
		metrics.RecordReviewProviderFailure()
		a.log.Warn(ctx, "review search failed, continuing without reviews",
			logger.String("query", key),
			logger.Error(err))
		return []model.Review{}
	}

	if len(found) > a.maxResults {
		found = found[:a.maxResults]
	}
	a.cache.put(key, found)
	metrics.UpdateReviewCacheSize(a.cache.size())
	return found
}
