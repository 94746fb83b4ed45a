// Package usecase はsceneinsightフィーチャーのビジネスロジックを実装します。
//
// 画像解析パイプラインは次の直線的な処理で構成されます。
//
//	画像バイト列 → 前処理（デコード・RGB化・224x224リサイズ・正規化）
//	            → シーン分類（上位ラベル）
//	            → プロンプト生成とテキスト生成サービス呼び出し
//	            → 生成テキストのアドバイス一覧への分割
package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"photo_backend/internal/feature/sceneinsight/domain"
	"photo_backend/internal/feature/sceneinsight/domain/entity"
)

const (
	// MaxImageSize は画像アップロードの最大サイズ（10MB）です。
	MaxImageSize = 10 * 1024 * 1024
	// MaxLabelLength はシーンラベルの最大文字数（rune数）です。
	MaxLabelLength = 100
	// SystemPrompt はアシスタントのペルソナを固定するシステム指示です。
	SystemPrompt = "You are an expert photography assistant."
	// SuggestionPromptTemplate は撮影アドバイス生成のユーザー指示テンプレートです。
	SuggestionPromptTemplate = "Provide photography tips for a scene containing %s. Include each tip as a separate line in a numbered or bullet-point format."
	// DegradedWarning はアドバイス生成に失敗しラベルのみを返す場合の注記です。
	DegradedWarning = "撮影アドバイスを生成できなかったため、シーンラベルのみを返しています"
)

// パイプラインの段階名です。StageObserverに渡されます。
const (
	StagePreprocess = "preprocess"
	StageClassify   = "classify"
	StageGenerate   = "generate"
)

// validLabel はシーンラベルに許可される文字パターンです（英数字・各国語文字・空白・一部記号）。
var validLabel = regexp.MustCompile(`^[\p{L}\p{N}\s_\-',.&()]+$`)

// Preprocessor は画像バイト列を正規化済みテンソルに変換するインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Preprocessor interface {
	// Preprocess は画像をデコードし、分類モデルの入力テンソルを返します。
	Preprocess(imageData []byte) (entity.Tensor, error)
}

// Classifier はテンソルからシーンを分類するインターフェースです。
// 実装はプロセス起動時に一度だけ初期化され、全リクエストから読み取り専用で共有されます。
type Classifier interface {
	// Classify は最も信頼度の高いラベルと上位候補を返します。
	Classify(ctx context.Context, tensor entity.Tensor) (*entity.Classification, error)
}

// SuggestionGenerator はプロンプトから撮影アドバイスのテキストを生成するインターフェースです。
type SuggestionGenerator interface {
	// Generate は生成されたテキストをそのまま返します。
	Generate(ctx context.Context, prompt entity.Prompt) (string, error)
}

// RateLimiter はテキスト生成呼び出しの頻度を制限します。
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// StageObserver はパイプラインの各段階の所要時間と再試行回数を記録します。
type StageObserver interface {
	ObserveStage(stage, outcome string, d time.Duration)
	ObserveRetry()
}

// Option はsceneInsightUsecaseの設定を変更します。
type Option func(*sceneInsightUsecase)

// WithRetryPolicy はテキスト生成の再試行ポリシーを設定します。
func WithRetryPolicy(p RetryPolicy) Option {
	return func(u *sceneInsightUsecase) { u.retry = p.normalized() }
}

// WithGenerationTimeout は1回のテキスト生成呼び出しのタイムアウトを設定します。0以下は無制限です。
func WithGenerationTimeout(d time.Duration) Option {
	return func(u *sceneInsightUsecase) { u.generationTimeout = d }
}

// WithRateLimiter はテキスト生成呼び出しのレートリミッターを設定します。
func WithRateLimiter(l RateLimiter) Option {
	return func(u *sceneInsightUsecase) { u.limiter = l }
}

// WithDegradation はアドバイス生成失敗時にラベルのみを返すかどうかを設定します。
func WithDegradation(enabled bool) Option {
	return func(u *sceneInsightUsecase) { u.degrade = enabled }
}

// WithObserver は段階ごとの計測先を設定します。nilの場合は計測しません。
func WithObserver(o StageObserver) Option {
	return func(u *sceneInsightUsecase) {
		if o != nil {
			u.observer = o
		}
	}
}

// WithLogger はロガーを設定します。
func WithLogger(l *zap.Logger) Option {
	return func(u *sceneInsightUsecase) {
		if l != nil {
			u.log = l
		}
	}
}

// sceneInsightUsecase は画像解析パイプラインを提供します。
// リクエストごとの状態は持たず、複数のgoroutineから同時に呼び出せます。
type sceneInsightUsecase struct {
	preprocessor Preprocessor
	classifier   Classifier
	generator    SuggestionGenerator

	retry             RetryPolicy
	generationTimeout time.Duration
	limiter           RateLimiter
	degrade           bool
	observer          StageObserver
	log               *zap.Logger
}

// NewSceneInsightUsecase はsceneInsightUsecaseの新しいインスタンスを生成します。
func NewSceneInsightUsecase(p Preprocessor, c Classifier, g SuggestionGenerator, opts ...Option) *sceneInsightUsecase {
	u := &sceneInsightUsecase{
		preprocessor:      p,
		classifier:        c,
		generator:         g,
		retry:             DefaultRetryPolicy(),
		generationTimeout: 30 * time.Second,
		degrade:           true,
		observer:          nopObserver{},
		log:               zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// BuildPrompt はシーンラベルを埋め込んだ固定プロンプトを生成します。
func BuildPrompt(label string) entity.Prompt {
	return entity.Prompt{
		Label:  label,
		System: SystemPrompt,
		User:   fmt.Sprintf(SuggestionPromptTemplate, label),
	}
}

// Analyze は画像のシーンを分類し、撮影アドバイスを生成します。
func (u *sceneInsightUsecase) Analyze(ctx context.Context, imageData []byte) (*entity.Insight, error) {
	cls, err := u.Classify(ctx, imageData)
	if err != nil {
		return nil, err
	}

	insight, err := u.suggest(ctx, cls.Label)
	if err == nil {
		return insight, nil
	}
	if !u.degrade || !errors.Is(err, domain.ErrGeneration) || ctx.Err() != nil {
		return nil, err
	}

	u.log.Warn("suggestion generation failed, returning label only",
		zap.String("label", cls.Label), zap.Error(err))
	return &entity.Insight{
		Label:       cls.Label,
		Suggestions: []string{},
		Degraded:    true,
		Warning:     DegradedWarning,
	}, nil
}

// Classify は画像を前処理し、シーンを分類します。
func (u *sceneInsightUsecase) Classify(ctx context.Context, imageData []byte) (*entity.Classification, error) {
	if len(imageData) == 0 {
		return nil, domain.ErrImageRequired
	}
	if len(imageData) > MaxImageSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", domain.ErrImageTooLarge, len(imageData), MaxImageSize)
	}

	start := time.Now()
	tensor, err := u.preprocessor.Preprocess(imageData)
	err = tag(err, domain.DecodeError, StagePreprocess)
	u.observe(StagePreprocess, start, err)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	cls, err := u.classifier.Classify(ctx, tensor)
	err = tag(err, domain.InferenceError, StageClassify)
	u.observe(StageClassify, start, err)
	if err != nil {
		return nil, err
	}

	u.log.Debug("scene classified",
		zap.String("label", cls.Label), zap.Float32("confidence", cls.Confidence))
	return cls, nil
}

// Suggest は呼び出し元が指定したシーンラベルから撮影アドバイスを生成します。
func (u *sceneInsightUsecase) Suggest(ctx context.Context, label string) (*entity.Insight, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", domain.ErrInvalidLabel)
	}
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return nil, fmt.Errorf("%w: exceeds maximum length of %d characters", domain.ErrInvalidLabel, MaxLabelLength)
	}
	if !validLabel.MatchString(label) {
		return nil, fmt.Errorf("%w: contains invalid characters", domain.ErrInvalidLabel)
	}
	return u.suggest(ctx, label)
}

func (u *sceneInsightUsecase) suggest(ctx context.Context, label string) (*entity.Insight, error) {
	start := time.Now()
	raw, err := u.generate(ctx, BuildPrompt(label))
	u.observe(StageGenerate, start, err)
	if err != nil {
		return nil, err
	}
	return &entity.Insight{
		Label:       label,
		Suggestions: ParseSuggestions(raw),
	}, nil
}

// generate は再試行ポリシーに従ってテキスト生成を呼び出します。
// 失敗は種別に関わらずGenerationErrorとして返します。
func (u *sceneInsightUsecase) generate(ctx context.Context, prompt entity.Prompt) (string, error) {
	for attempt := 1; ; attempt++ {
		if u.limiter != nil {
			if err := u.limiter.Wait(ctx); err != nil {
				return "", domain.GenerationError("rate limit", err)
			}
		}

		raw, err := u.generateOnce(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		if attempt >= u.retry.MaxAttempts || ctx.Err() != nil {
			return "", err
		}

		delay := u.retry.Backoff(attempt)
		u.observer.ObserveRetry()
		u.log.Warn("suggestion generation failed, retrying",
			zap.String("label", prompt.Label),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", domain.GenerationError("generate", ctx.Err())
		case <-timer.C:
		}
	}
}

func (u *sceneInsightUsecase) generateOnce(ctx context.Context, prompt entity.Prompt) (string, error) {
	if u.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.generationTimeout)
		defer cancel()
	}

	raw, err := u.generator.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, domain.ErrGeneration) {
			return "", err
		}
		return "", domain.GenerationError("generate", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.GenerationError("generate", errors.New("empty response"))
	}
	return raw, nil
}

func (u *sceneInsightUsecase) observe(stage string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if kind, ok := domain.KindOf(err); ok {
			outcome = kind.String()
		}
	}
	u.observer.ObserveStage(stage, outcome, time.Since(start))
}

// tag は種別の付いていないエラーを指定の種別で包みます。
func tag(err error, wrap func(op string, err error) error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.KindOf(err); ok {
		return err
	}
	return wrap(op, err)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, string, time.Duration) {}
func (nopObserver) ObserveRetry()                              {}
