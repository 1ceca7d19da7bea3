// Package advisor owns the serving model and answers recommendation requests.
// It loads training data, fits the forest, and swaps the result in atomically
// so in-flight requests keep the model they started with.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/crop-advisor-service/internal/config"
	"github.com/couchcryptid/crop-advisor-service/internal/dataset"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/couchcryptid/crop-advisor-service/internal/observability"
	"github.com/couchcryptid/crop-advisor-service/internal/region"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

var (
	// ErrModelNotReady is returned until the first model has been installed.
	ErrModelNotReady = errors.New("model not ready")
	// ErrRegionsDisabled is returned for a region-filtered request when no
	// production history was loaded.
	ErrRegionsDisabled = errors.New("region history not configured")
	// ErrRetrainThrottled is returned when an admin retrain arrives sooner than
	// the configured minimum interval.
	ErrRetrainThrottled = errors.New("retrain throttled")
)

// Options configures a Service.
type Options struct {
	TrainingDataPath   string
	Forest             domain.ForestOptions
	TopK               int
	RetrainMinInterval time.Duration
}

// OptionsFromConfig maps service configuration onto advisor options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TrainingDataPath: cfg.TrainingDataPath,
		Forest: domain.ForestOptions{
			Trees:    cfg.ForestTrees,
			MaxDepth: cfg.ForestMaxDepth,
			Seed:     cfg.ForestSeed,
		},
		TopK:               cfg.TopK,
		RetrainMinInterval: cfg.RetrainMinInterval,
	}
}

// Service serves rule-based and model-based crop recommendations.
type Service struct {
	opts    Options
	model   atomic.Pointer[domain.TrainedModel]
	rules   domain.RuleRecommender
	regions region.Source
	limiter *rate.Limiter
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	trainMu   sync.Mutex
	retrainMu sync.Mutex
}

// New creates a Service. regions may be nil, which disables region filtering.
func New(opts Options, regions region.Source, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if opts.TopK <= 0 {
		opts.TopK = domain.DefaultTopK
	}
	limit := rate.Inf
	if opts.RetrainMinInterval > 0 {
		limit = rate.Every(opts.RetrainMinInterval)
	}
	return &Service{
		opts:    opts,
		regions: regions,
		limiter: rate.NewLimiter(limit, 1),
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
}

// Train loads the training CSV, fits a new model, and installs it. On failure
// the previously installed model stays live.
func (s *Service) Train(ctx context.Context) (*domain.TrainedModel, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	start := s.clock.Now()
	m, err := s.fit(ctx)
	s.metrics.TrainingDuration.Observe(s.clock.Since(start).Seconds())
	if err != nil {
		s.metrics.TrainingRuns.WithLabelValues("error").Inc()
		s.logger.Error("training failed", "path", s.opts.TrainingDataPath, "error", err)
		return nil, err
	}
	s.metrics.TrainingRuns.WithLabelValues("success").Inc()
	s.install(m, "train")
	return m, nil
}

func (s *Service) fit(ctx context.Context) (*domain.TrainedModel, error) {
	schema, records, err := dataset.LoadTrainingCSV(s.opts.TrainingDataPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := domain.Fit(schema, records, s.opts.Forest)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", s.opts.TrainingDataPath, err)
	}
	return m, nil
}

// Retrain is Train behind the admin rate limiter. Only successful retrains
// spend the limiter token, so a corrected retry is not throttled.
func (s *Service) Retrain(ctx context.Context) (ModelInfo, error) {
	s.retrainMu.Lock()
	defer s.retrainMu.Unlock()

	if s.limiter.Limit() != rate.Inf && s.limiter.Tokens() < 1 {
		s.metrics.RetrainThrottled.Inc()
		return ModelInfo{}, ErrRetrainThrottled
	}
	m, err := s.Train(ctx)
	if err != nil {
		return ModelInfo{}, err
	}
	s.limiter.Allow()
	return infoFor(m), nil
}

// LoadArtifact installs a model previously written by TrainedModel.Encode.
func (s *Service) LoadArtifact(path string) (*domain.TrainedModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model artifact: %w", err)
	}
	defer f.Close()

	m, err := domain.DecodeModel(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.install(m, "artifact")
	return m, nil
}

func (s *Service) install(m *domain.TrainedModel, source string) {
	prev := s.model.Swap(m)
	s.metrics.ModelClasses.Set(float64(len(m.Classes())))
	s.metrics.ModelTrainedAt.Set(float64(m.TrainedAt().Unix()))

	attrs := []any{
		"model_id", m.ID(),
		"source", source,
		"classes", len(m.Classes()),
		"rows", m.TrainingRows(),
		"trees", m.Options().Trees,
	}
	if prev != nil {
		attrs = append(attrs, "replaced", prev.ID())
	}
	s.logger.Info("model installed", attrs...)
}

// Model returns the serving model.
func (s *Service) Model() (*domain.TrainedModel, error) {
	m := s.model.Load()
	if m == nil {
		return nil, ErrModelNotReady
	}
	return m, nil
}

// CheckReadiness reports whether a model is installed.
func (s *Service) CheckReadiness(_ context.Context) error {
	if s.model.Load() == nil {
		return ErrModelNotReady
	}
	return nil
}

// RecommendRules answers from the fixed season and soil table.
func (s *Service) RecommendRules(season, soil string) ([]string, error) {
	parsed, err := domain.ParseSeason(season)
	if err != nil {
		s.metrics.Recommendations.WithLabelValues("rules", "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	crops := s.rules.Recommend(parsed, soil)
	s.metrics.Recommendations.WithLabelValues("rules", string(domain.OutcomeRanked)).Inc()
	return crops, nil
}

// RecommendML ranks crops for the request's measurements against the serving
// model. When State and District are set the ranking is restricted to crops
// that district has grown.
func (s *Service) RecommendML(ctx context.Context, req MLRequest) (domain.Recommendation, error) {
	rec, err := s.recommendML(ctx, req)
	outcome := string(rec.Outcome)
	if err != nil {
		outcome = "error"
	}
	s.metrics.Recommendations.WithLabelValues("ml", outcome).Inc()
	return rec, err
}

func (s *Service) recommendML(ctx context.Context, req MLRequest) (domain.Recommendation, error) {
	if err := req.Validate(); err != nil {
		return domain.Recommendation{}, err
	}
	m, err := s.Model()
	if err != nil {
		return domain.Recommendation{}, err
	}
	sample, err := m.Schema().SampleFromMap(req.Features, req.Soil)
	if err != nil {
		return domain.Recommendation{}, err
	}

	var allowed domain.CropSet
	if req.Filtered() {
		if s.regions == nil {
			return domain.Recommendation{}, ErrRegionsDisabled
		}
		allowed, err = s.regions.CropsFor(ctx, req.State, req.District)
		if err != nil {
			return domain.Recommendation{}, err
		}
	}

	k := req.K
	if k <= 0 {
		k = s.opts.TopK
	}

	start := s.clock.Now()
	rec, err := m.Rank(sample, allowed, k)
	s.metrics.RankDuration.Observe(s.clock.Since(start).Seconds())
	if err != nil {
		return domain.Recommendation{}, err
	}

	s.logger.Debug("ml recommendation",
		"model_id", rec.ModelID,
		"outcome", rec.Outcome,
		"filtered", rec.Filtered,
		"items", len(rec.Items),
	)
	return rec, nil
}

// RegionCrops lists the crops a district has historically grown.
func (s *Service) RegionCrops(ctx context.Context, state, district string) ([]string, error) {
	if s.regions == nil {
		return nil, ErrRegionsDisabled
	}
	set, err := s.regions.CropsFor(ctx, state, district)
	if err != nil {
		return nil, err
	}
	return set.Names(), nil
}

// RegionStates lists the states with production history.
func (s *Service) RegionStates() ([]string, error) {
	if s.regions == nil {
		return nil, ErrRegionsDisabled
	}
	return s.regions.States(), nil
}

// RegionDistricts lists the districts of a state with production history.
func (s *Service) RegionDistricts(state string) ([]string, error) {
	if s.regions == nil {
		return nil, ErrRegionsDisabled
	}
	return s.regions.Districts(state)
}

// ModelInfo describes the serving model.
type ModelInfo struct {
	ID             string    `json:"id"`
	TrainedAt      time.Time `json:"trained_at"`
	Features       []string  `json:"features"`
	HasSoil        bool      `json:"has_soil"`
	SoilCategories []string  `json:"soil_categories,omitempty"`
	Classes        []string  `json:"classes"`
	TrainingRows   int       `json:"training_rows"`
	Trees          int       `json:"trees"`
	MaxDepth       int       `json:"max_depth"`
	Seed           uint64    `json:"seed"`
}

// Info describes the serving model.
func (s *Service) Info() (ModelInfo, error) {
	m, err := s.Model()
	if err != nil {
		return ModelInfo{}, err
	}
	return infoFor(m), nil
}

func infoFor(m *domain.TrainedModel) ModelInfo {
	schema := m.Schema()
	opts := m.Options()
	return ModelInfo{
		ID:             m.ID(),
		TrainedAt:      m.TrainedAt(),
		Features:       schema.Numeric,
		HasSoil:        schema.HasSoil,
		SoilCategories: m.SoilCategories(),
		Classes:        m.Classes(),
		TrainingRows:   m.TrainingRows(),
		Trees:          opts.Trees,
		MaxDepth:       opts.MaxDepth,
		Seed:           opts.Seed,
	}
}
