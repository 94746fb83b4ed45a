// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"photo_backend/internal/feature/sceneinsight/adapters/gemini"
	"photo_backend/internal/feature/sceneinsight/adapters/imageproc"
	"photo_backend/internal/feature/sceneinsight/adapters/onnx"
	"photo_backend/internal/feature/sceneinsight/adapters/openai"
	"photo_backend/internal/feature/sceneinsight/adapters/vision"
	"photo_backend/internal/feature/sceneinsight/domain/entity"
	"photo_backend/internal/feature/sceneinsight/transport/handler"
	"photo_backend/internal/feature/sceneinsight/usecase"
	"photo_backend/internal/platform/cache"
	"photo_backend/internal/platform/config"
	platformhttp "photo_backend/internal/platform/http"
	"photo_backend/internal/platform/metrics"
	"photo_backend/internal/shared/ratelimiter"
)

// SceneInsight bundles the wired scene insight feature.
type SceneInsight struct {
	Handler *handler.SceneInsightHandler
	closers []func() error
}

// Close releases the classifier and generator resources.
func (s *SceneInsight) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewSceneInsight creates the scene insight handler with all pipeline components.
// The model is loaded here so that a broken model fails startup instead of the first request.
// rdb may be nil, in which case suggestions are not cached.
func NewSceneInsight(ctx context.Context, cfg *config.Config, rdb *redis.Client, m *metrics.Metrics, log *zap.Logger) (*SceneInsight, error) {
	s := &SceneInsight{}

	pre, cls, closeFn, err := NewClassifier(ctx, cfg.Classifier)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeFn)

	gen, err := NewSuggestionGenerator(ctx, cfg.Generator)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	cached := cache.NewCachingSuggestionGenerator(rdb, cfg.Redis.TTL, gen, "suggestions:"+cfg.Generator.Backend)

	var observer usecase.StageObserver
	if m != nil {
		observer = m
	}
	uc := usecase.NewSceneInsightUsecase(pre, cls, cached,
		usecase.WithRetryPolicy(usecase.RetryPolicy{
			MaxAttempts: cfg.Generator.MaxAttempts,
			BaseDelay:   cfg.Generator.RetryBaseDelay,
			MaxDelay:    cfg.Generator.RetryMaxDelay,
		}),
		usecase.WithGenerationTimeout(cfg.Generator.Timeout),
		usecase.WithRateLimiter(ratelimiter.NewRateLimiter(cfg.Generator.RateLimit, 1)),
		usecase.WithDegradation(cfg.Generator.Degrade),
		usecase.WithObserver(observer),
		usecase.WithLogger(log),
	)

	s.Handler = handler.NewSceneInsightHandler(uc, log)
	log.Info("scene insight pipeline ready",
		zap.String("classifier", cfg.Classifier.Backend),
		zap.String("generator", cfg.Generator.Backend),
		zap.Bool("cache", rdb != nil),
	)
	return s, nil
}

// NewClassifier creates the preprocessor and classifier for the configured backend.
// The preprocessor follows the tensor layout and normalization the model expects.
func NewClassifier(ctx context.Context, cfg config.ClassifierConfig) (*imageproc.Preprocessor, usecase.Classifier, func() error, error) {
	switch cfg.Backend {
	case config.ClassifierONNX:
		c, err := onnx.NewClassifier(onnx.Config{
			ModelPath:         cfg.ModelPath,
			MetadataPath:      cfg.MetadataPath,
			SharedLibraryPath: cfg.SharedLibraryPath,
			TopK:              cfg.TopK,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load onnx classifier: %w", err)
		}
		meta := c.Metadata()
		pre := imageproc.NewPreprocessor(meta.TensorLayout(), meta.TensorNormalization(), cfg.MaxPixels)
		return pre, c, c.Close, nil
	case config.ClassifierVision:
		c, err := vision.NewVisionSceneClassifier(ctx, cfg.TopK)
		if err != nil {
			return nil, nil, nil, err
		}
		pre := imageproc.NewPreprocessor(entity.LayoutNHWC, entity.NormalizationTF, cfg.MaxPixels)
		return pre, c, c.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}

// NewSuggestionGenerator creates the suggestion generator for the configured backend.
func NewSuggestionGenerator(ctx context.Context, cfg config.GeneratorConfig) (usecase.SuggestionGenerator, error) {
	switch cfg.Backend {
	case config.GeneratorGemini:
		return gemini.NewGeminiSuggestionGenerator(ctx, gemini.Config{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			HTTPClient: platformhttp.NewHTTPClient(cfg.Timeout),
		})
	case config.GeneratorOpenAI:
		return openai.NewOpenAISuggestionGenerator(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, platformhttp.NewHTTPClient(cfg.Timeout)), nil
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.Backend)
	}
}
