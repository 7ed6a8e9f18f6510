// Package service provides the core analysis service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apsara-ai/derma/internal/adapters/catalog"
	"github.com/apsara-ai/derma/internal/adapters/filestore"
	"github.com/apsara-ai/derma/internal/adapters/videosearch"
	"github.com/apsara-ai/derma/internal/domain/classify"
	"github.com/apsara-ai/derma/internal/domain/descriptor"
	"github.com/apsara-ai/derma/internal/domain/model"
	"github.com/apsara-ai/derma/internal/domain/recommend"
	"github.com/apsara-ai/derma/internal/domain/reviews"
	"github.com/apsara-ai/derma/internal/domain/session"
	"github.com/apsara-ai/derma/internal/domain/types"
	"github.com/apsara-ai/derma/pkg/logger"
	"github.com/apsara-ai/derma/pkg/metrics"
)

// ErrLowQualityImage indicates the upload decoded but is too degraded for
// a trustworthy reading. Surfaced so the caller can ask for a better photo
// instead of receiving a fabricated assessment.
var ErrLowQualityImage = errors.New("image quality too low for analysis")

// Service wires the analysis pipeline, catalog, review aggregation, and
// session management behind one facade.
type Service struct {
	mu sync.RWMutex

	// Core components
	extractor  descriptor.Extractor
	classifier *classify.LinearClassifier
	matcher    *recommend.Matcher
	aggregator *reviews.Aggregator
	files      *filestore.Store
	sessions   *session.Manager
	store      *session.Store
	catalog    []model.Product

	// Configuration
	catalogPath      string
	uploadDir        string
	weightsPath      string
	topN             int
	concernThreshold float64
	epsilon          float64
	minQuality       float64
	reviewTTL        time.Duration
	reviewTopK       int
	reviewMax        int
	sessionIdle      time.Duration
	sessionSweep     time.Duration
	searchBaseURL    string
	searchAPIKey     string
	provider         reviews.Provider

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithCatalogPath sets the CSV catalog location.
func WithCatalogPath(path string) Option {
	return func(s *Service) { s.catalogPath = path }
}

// WithUploadDir sets the directory uploads are persisted under.
func WithUploadDir(dir string) Option {
	return func(s *Service) { s.uploadDir = dir }
}

// WithWeightsPath sets the classifier weights artifact location. Empty
// keeps the builtin parameters.
func WithWeightsPath(path string) Option {
	return func(s *Service) { s.weightsPath = path }
}

// WithTopN caps the number of recommended products.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithConcernThreshold sets the confidence cutoff for reported concerns.
func WithConcernThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.concernThreshold = t
		}
	}
}

// WithSkinTypeEpsilon sets the tie-break margin for skin type selection.
func WithSkinTypeEpsilon(e float64) Option {
	return func(s *Service) {
		if e > 0 {
			s.epsilon = e
		}
	}
}

// WithMinQuality sets the quality score below which uploads are rejected.
func WithMinQuality(q float64) Option {
	return func(s *Service) {
		if q > 0 {
			s.minQuality = q
		}
	}
}

// WithReviewTTL sets the review cache TTL.
func WithReviewTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.reviewTTL = ttl
		}
	}
}

// WithReviewTopK sets how many concerns feed the review query.
func WithReviewTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.reviewTopK = k
		}
	}
}

// WithReviewMaxResults caps fetched reviews per query.
func WithReviewMaxResults(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.reviewMax = n
		}
	}
}

// WithVideoSearch sets the external video search endpoint and key.
func WithVideoSearch(baseURL, apiKey string) Option {
	return func(s *Service) {
		s.searchBaseURL = baseURL
		s.searchAPIKey = apiKey
	}
}

// WithReviewProvider injects a review provider directly, bypassing the
// video search client. Used by tests.
func WithReviewProvider(p reviews.Provider) Option {
	return func(s *Service) { s.provider = p }
}

// WithSessionIdleTimeout sets the session inactivity window.
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionIdle = d
		}
	}
}

// WithSessionSweepInterval sets the expiry sweep cadence.
func WithSessionSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionSweep = d
		}
	}
}

// New creates a Service with configuration options. Call Start before use.
func New(opts ...Option) *Service {
	s := &Service{
		catalogPath:      "data/products.csv",
		uploadDir:        "uploads",
		topN:             10,
		concernThreshold: 0.3,
		epsilon:          1e-6,
		minQuality:       0.2,
		reviewTTL:        time.Hour,
		reviewTopK:       2,
		reviewMax:        3,
		sessionIdle:      30 * time.Minute,
		sessionSweep:     5 * time.Minute,
		logger:           logger.Get(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the pipeline components and loads the catalog. It is not
// safe to call concurrently with the request methods.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	files, err := filestore.New(s.uploadDir, filestore.WithLogger(s.logger.Named("filestore")))
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	s.files = files

	loader := catalog.New(catalog.WithLogger(s.logger.Named("catalog")))
	products, err := loader.Load(ctx, s.catalogPath)
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	s.catalog = products

	s.extractor = descriptor.New()
	s.classifier = classify.New(
		classify.WithConcernThreshold(s.concernThreshold),
		classify.WithEpsilon(s.epsilon),
		classify.WithWeightsPath(s.weightsPath),
	)
	s.matcher = recommend.New(recommend.WithTopN(s.topN))

	provider := s.provider
	if provider == nil {
		provider = videosearch.New(s.searchBaseURL,
			videosearch.WithAPIKey(s.searchAPIKey),
			videosearch.WithLogger(s.logger.Named("videosearch")),
		)
	}
	s.aggregator = reviews.New(provider,
		reviews.WithTTL(s.reviewTTL),
		reviews.WithTopK(s.reviewTopK),
		reviews.WithMaxResults(s.reviewMax),
		reviews.WithLogger(s.logger.Named("reviews")),
	)

	s.store = session.NewStore(
		session.WithIdleTimeout(s.sessionIdle),
		session.WithSweepInterval(s.sessionSweep),
		session.WithStoreLogger(s.logger.Named("session-store")),
	)
	s.store.StartSweeper(ctx)
	s.sessions = session.NewManager(s.store, s.extractor, s.classifier,
		session.WithManagerLogger(s.logger.Named("session-manager")))

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("catalog_products", len(products)),
		logger.String("upload_dir", s.uploadDir))
	return nil
}

// Stop shuts down background work. Safe to call multiple times.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.store.Close()
	s.started = false
}

// Analyze runs the full pipeline on raw image bytes: extract, classify,
// persist, then recommendation matching and review lookup in parallel.
// Review failures degrade to an empty list; everything else is surfaced.
func (s *Service) Analyze(ctx context.Context, data []byte) (types.AnalysisResult, error) {
	start := time.Now()

	extractStart := time.Now()
	desc, err := s.extractor.Extract(data)
	metrics.RecordExtractionLatency(float64(time.Since(extractStart).Milliseconds()))
	if err != nil && !errors.Is(err, descriptor.ErrNoFaceDetected) {
		metrics.RecordAnalysisFailure("unreadable_image")
		return types.AnalysisResult{}, fmt.Errorf("analyze: %w", err)
	}
	if !desc.FaceDetected {
		metrics.RecordFaceNotDetected()
	}
	if desc.QualityScore < s.minQuality {
		metrics.RecordLowQualityUpload()
		metrics.RecordAnalysisFailure("low_quality")
		return types.AnalysisResult{}, fmt.Errorf("analyze: %w", ErrLowQualityImage)
	}

	classifyStart := time.Now()
	assessment, err := s.classifier.Classify(ctx, desc)
	metrics.RecordClassificationLatency(float64(time.Since(classifyStart).Milliseconds()))
	if err != nil {
		metrics.RecordAnalysisFailure("classification_unavailable")
		return types.AnalysisResult{}, fmt.Errorf("analyze: %w", err)
	}

	imagePath, err := s.files.Save(ctx, data, desc.Format)
	if err != nil {
		metrics.RecordAnalysisFailure("save_failed")
		return types.AnalysisResult{}, fmt.Errorf("analyze: %w", err)
	}
	assessment.SourceImageRef = imagePath

	// Recommendation matching and review lookup are independent once the
	// assessment exists; run them concurrently.
	var (
		wg      sync.WaitGroup
		scored  []model.ScoredProduct
		watched []model.Review
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		scored = s.matcher.Match(assessment, s.catalog)
	}()
	go func() {
		defer wg.Done()
		watched = s.aggregator.FindReviews(ctx, assessment)
	}()
	wg.Wait()

	metrics.RecordAnalysisCompleted()
	metrics.RecordRecommendationSize(len(scored))

	return assembleResult(assessment, desc, scored, watched, imagePath, time.Since(start)), nil
}

// PostMessage forwards a chat message to the session manager.
func (s *Service) PostMessage(ctx context.Context, sessionID, text string) (types.ChatReply, error) {
	reply, err := s.sessions.PostMessage(ctx, sessionID, text)
	if err != nil {
		return types.ChatReply{}, err
	}
	return types.ChatReply{
		Response:    reply.Response,
		SessionID:   reply.SessionID,
		Suggestions: reply.Suggestions,
	}, nil
}

// AttachImage analyzes an image in the context of an existing session.
func (s *Service) AttachImage(ctx context.Context, sessionID string, data []byte) (types.ChatReply, error) {
	reply, err := s.sessions.AttachImage(ctx, sessionID, data)
	if err != nil {
		return types.ChatReply{}, err
	}
	return types.ChatReply{
		Response:    reply.Response,
		SessionID:   reply.SessionID,
		Suggestions: reply.Suggestions,
	}, nil
}

// ExportSession returns a snapshot of the session.
func (s *Service) ExportSession(sessionID string) (types.SessionExport, error) {
	return s.sessions.Export(sessionID)
}

// ResetSession discards the session. Unknown ids are not an error.
func (s *Service) ResetSession(sessionID string) {
	s.sessions.Reset(sessionID)
}

// ModelInfo describes the active classification backend.
func (s *Service) ModelInfo() types.BackendInfo {
	return s.classifier.Info()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"started":          s.started,
		"catalog_products": len(s.catalog),
		"sessions_active":  s.store.Len(),
		"top_n":            s.topN,
		"review_ttl_sec":   int(s.reviewTTL.Seconds()),
		"min_quality":      s.minQuality,
	}
}

func assembleResult(
	assessment model.SkinAssessment,
	desc model.ImageDescriptor,
	scored []model.ScoredProduct,
	watched []model.Review,
	imagePath string,
	elapsed time.Duration,
) types.AnalysisResult {
	concerns := make([]types.ConcernItem, 0, len(assessment.Concerns))
	for _, c := range assessment.Concerns {
		concerns = append(concerns, types.ConcernItem{Name: c.Name, Confidence: c.Confidence})
	}

	products := make([]types.ProductItem, 0, len(scored))
	for _, sp := range scored {
		products = append(products, types.ProductItem{
			ID:         sp.ID,
			Name:       sp.Name,
			Brand:      sp.Brand,
			Category:   sp.Category,
			Concerns:   sp.ConcernsAddressed,
			SkinTypes:  sp.SkinTypes,
			Price:      sp.Price.String(),
			URL:        sp.URL,
			MatchScore: sp.MatchScore,
		})
	}

	videos := make([]types.VideoItem, 0, len(watched))
	for _, r := range watched {
		videos = append(videos, types.VideoItem{
			Title:     r.Title,
			URL:       r.URL,
			Channel:   r.Channel,
			Thumbnail: r.Thumbnail,
		})
	}

	return types.AnalysisResult{
		AnalysisID:       uuid.NewString(),
		SkinType:         assessment.SkinType,
		Concerns:         concerns,
		Recommendations:  recommend.RoutineSummary(assessment),
		Products:         products,
		Videos:           videos,
		ImagePath:        imagePath,
		Quality: types.ImageQuality{
			Width:        desc.Width,
			Height:       desc.Height,
			FaceDetected: desc.FaceDetected,
			QualityScore: desc.QualityScore,
		},
		ProcessingTimeMS: elapsed.Milliseconds(),
	}
}
