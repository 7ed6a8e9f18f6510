package reviews_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/apsara-ai/derma/internal/domain/model"
	"github.com/apsara-ai/derma/internal/domain/reviews"
	"github.com/apsara-ai/derma/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type stubProvider struct {
	mu      sync.Mutex
	calls   int
	queries []string
	result  []model.Review
	err     error
}

func (s *stubProvider) Search(_ context.Context, query string, _ int) ([]model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.queries = append(s.queries, query)
	return s.result, s.err
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func oilyAcne() model.SkinAssessment {
	return model.SkinAssessment{
		SkinType: model.SkinTypeOily,
		Concerns: []model.Concern{
			{Name: model.ConcernAcne, Confidence: 0.9},
			{Name: model.ConcernPores, Confidence: 0.5},
		},
	}
}

func TestAggregator_FindReviews(t *testing.T) {
	Convey("Given an aggregator over a healthy provider", t, func() {
		ctx := context.Background()
		provider := &stubProvider{
			result: []model.Review{
				{Title: "Oily skin routine", URL: "https://example.com/v1", Channel: "derm"},
			},
		}
		agg := reviews.New(provider)

		Convey("When the same assessment is looked up twice", func() {
			first := agg.FindReviews(ctx, oilyAcne())
			second := agg.FindReviews(ctx, oilyAcne())

			Convey("Then the second lookup is served from cache", func() {
				So(first, ShouldHaveLength, 1)
				So(second, ShouldResemble, first)
				So(provider.callCount(), ShouldEqual, 1)
			})
		})

		Convey("When assessments differ", func() {
			agg.FindReviews(ctx, oilyAcne())
			agg.FindReviews(ctx, model.SkinAssessment{SkinType: model.SkinTypeDry})

			Convey("Then each gets its own provider call", func() {
				So(provider.callCount(), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a provider that fails", t, func() {
		ctx := context.Background()

		Convey("When the provider is rate limited", func() {
			provider := &stubProvider{err: reviews.ErrRateLimited}
			agg := reviews.New(provider)

			found := agg.FindReviews(ctx, oilyAcne())

			Convey("Then the result is empty, not an error", func() {
				So(found, ShouldBeEmpty)
			})
		})

		Convey("When the provider times out", func() {
			provider := &stubProvider{err: context.DeadlineExceeded}
			agg := reviews.New(provider)

			found := agg.FindReviews(ctx, oilyAcne())

			Convey("Then the result is empty", func() {
				So(found, ShouldBeEmpty)
			})

			Convey("Then failures are not cached and the provider is retried", func() {
				agg.FindReviews(ctx, oilyAcne())
				So(provider.callCount(), ShouldEqual, 2)
			})
		})

		Convey("When the provider fails with an arbitrary error", func() {
			provider := &stubProvider{err: errors.New("boom")}
			agg := reviews.New(provider)

			So(agg.FindReviews(ctx, oilyAcne()), ShouldBeEmpty)
		})
	})

	Convey("Given an aggregator with a controllable clock", t, func() {
		ctx := context.Background()
		now := time.Unix(1700000000, 0)
		var mu sync.Mutex
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		advance := func(d time.Duration) {
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
		}

		provider := &stubProvider{
			result: []model.Review{{Title: "review", URL: "https://example.com/v"}},
		}
		agg := reviews.New(provider,
			reviews.WithTTL(time.Minute),
			reviews.WithClock(clock),
		)

		Convey("When a cached entry passes its TTL", func() {
			agg.FindReviews(ctx, oilyAcne())
			advance(2 * time.Minute)
			agg.FindReviews(ctx, oilyAcne())

			Convey("Then the provider is consulted again", func() {
				So(provider.callCount(), ShouldEqual, 2)
			})
		})

		Convey("When a cached entry is still fresh", func() {
			agg.FindReviews(ctx, oilyAcne())
			advance(30 * time.Second)
			agg.FindReviews(ctx, oilyAcne())

			Convey("Then the cache serves it", func() {
				So(provider.callCount(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given provider results above the configured cap", t, func() {
		ctx := context.Background()
		provider := &stubProvider{
			result: []model.Review{
				{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"},
			},
		}
		agg := reviews.New(provider, reviews.WithMaxResults(2))

		Convey("When reviews are fetched", func() {
			found := agg.FindReviews(ctx, oilyAcne())

			Convey("Then the result is capped", func() {
				So(found, ShouldHaveLength, 2)
			})
		})
	})
}

func TestAggregator_QueryKey(t *testing.T) {
	Convey("Given an aggregator with top-K of two", t, func() {
		agg := reviews.New(&stubProvider{}, reviews.WithTopK(2))

		Convey("When concerns exceed K", func() {
			key := agg.QueryKey(model.SkinAssessment{
				SkinType: model.SkinTypeCombination,
				Concerns: []model.Concern{
					{Name: model.ConcernDullness, Confidence: 0.4},
					{Name: model.ConcernAcne, Confidence: 0.9},
					{Name: model.ConcernRedness, Confidence: 0.7},
				},
			})

			Convey("Then only the two highest-confidence concerns appear", func() {
				So(key, ShouldContainSubstring, "acne")
				So(key, ShouldContainSubstring, "redness")
				So(key, ShouldNotContainSubstring, "dullness")
			})
		})

		Convey("When concern confidences tie", func() {
			a := agg.QueryKey(model.SkinAssessment{
				SkinType: model.SkinTypeDry,
				Concerns: []model.Concern{
					{Name: model.ConcernRedness, Confidence: 0.5},
					{Name: model.ConcernDryness, Confidence: 0.5},
					{Name: model.ConcernPores, Confidence: 0.5},
				},
			})
			b := agg.QueryKey(model.SkinAssessment{
				SkinType: model.SkinTypeDry,
				Concerns: []model.Concern{
					{Name: model.ConcernPores, Confidence: 0.5},
					{Name: model.ConcernDryness, Confidence: 0.5},
					{Name: model.ConcernRedness, Confidence: 0.5},
				},
			})

			Convey("Then the key is order-independent", func() {
				So(a, ShouldEqual, b)
				So(a, ShouldContainSubstring, "dryness")
				So(a, ShouldContainSubstring, "pores")
			})
		})

		Convey("When underscored concern names are included", func() {
			key := agg.QueryKey(model.SkinAssessment{
				SkinType: model.SkinTypeNormal,
				Concerns: []model.Concern{{Name: model.ConcernDarkCircles, Confidence: 0.8}},
			})

			Convey("Then they are humanized for search", func() {
				So(key, ShouldContainSubstring, "dark circles")
			})
		})
	})
}
