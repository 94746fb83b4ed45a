// Package config は環境変数からアプリケーション設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 分類器・生成器のバックエンド名です。
const (
	ClassifierONNX   = "onnx"
	ClassifierVision = "vision"

	GeneratorGemini = "gemini"
	GeneratorOpenAI = "openai"
)

// Config はアプリケーション全体の設定です。
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Classifier ClassifierConfig
	Generator  GeneratorConfig
	Redis      RedisConfig
	Auth       AuthConfig
}

// ServerConfig はHTTPサーバーの設定です。
type ServerConfig struct {
	Host            string
	Port            string
	GinMode         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string // 空の場合はCORSを無効化
}

// Addr は待ち受けアドレスを返します。
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// ClassifierConfig はシーン分類器の設定です。
type ClassifierConfig struct {
	Backend           string // onnx, vision
	ModelPath         string
	MetadataPath      string
	SharedLibraryPath string
	TopK              int
	MaxPixels         int
}

// GeneratorConfig は撮影アドバイス生成の設定です。
type GeneratorConfig struct {
	Backend        string // gemini, openai
	GeminiModel    string
	GeminiAPIKey   string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	Timeout        time.Duration // 1回の呼び出しのタイムアウト
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimit      float64 // 1秒あたりの最大呼び出し数。0以下は無制限
	Degrade        bool    // 生成失敗時にラベルのみを返すか
}

// RedisConfig はアドバイスキャッシュ用Redisの設定です。
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

// Addr はRedisの接続先アドレスを返します。
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// AuthConfig はBearerトークン認証の設定です。
type AuthConfig struct {
	Enabled    bool
	JWTSecret  string
	Expiration time.Duration
}

// Load は .env（存在する場合）と環境変数から設定を読み込み、検証します。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv は環境変数のみから設定を読み込み、検証します。
func FromEnv() (*Config, error) {
	r := &reader{}
	cfg := &Config{
		Server: ServerConfig{
			Host:            r.str("HOST", ""),
			Port:            r.str("PORT", "8080"),
			GinMode:         r.str("GIN_MODE", "release"),
			ReadTimeout:     r.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    r.duration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: r.duration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  r.list("CORS_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  r.str("LOG_LEVEL", "info"),
			Format: r.str("LOG_FORMAT", "json"),
		},
		Classifier: ClassifierConfig{
			Backend:           strings.ToLower(r.str("CLASSIFIER_BACKEND", ClassifierONNX)),
			ModelPath:         r.str("ONNX_MODEL_PATH", "models/mobilenet_v2.onnx"),
			MetadataPath:      r.str("ONNX_METADATA_PATH", "models/mobilenet_v2.json"),
			SharedLibraryPath: r.str("ONNXRUNTIME_LIB_PATH", ""),
			TopK:              r.integer("CLASSIFIER_TOP_K", 5),
			MaxPixels:         r.integer("MAX_IMAGE_PIXELS", 40_000_000),
		},
		Generator: GeneratorConfig{
			Backend:        strings.ToLower(r.str("GENERATOR_BACKEND", GeneratorGemini)),
			GeminiModel:    r.str("GEMINI_MODEL", "gemini-2.5-flash"),
			GeminiAPIKey:   r.str("GEMINI_API_KEY", ""),
			OpenAIAPIKey:   r.str("OPENAI_API_KEY", ""),
			OpenAIBaseURL:  r.str("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:    r.str("OPENAI_MODEL", "gpt-3.5-turbo"),
			Timeout:        r.duration("GENERATION_TIMEOUT", 30*time.Second),
			MaxAttempts:    r.integer("GENERATION_MAX_ATTEMPTS", 3),
			RetryBaseDelay: r.duration("GENERATION_RETRY_BASE_DELAY", 500*time.Millisecond),
			RetryMaxDelay:  r.duration("GENERATION_RETRY_MAX_DELAY", 4*time.Second),
			RateLimit:      r.number("GENERATION_RATE_LIMIT", 5),
			Degrade:        r.boolean("DEGRADE_ON_GENERATION_FAILURE", true),
		},
		Redis: RedisConfig{
			Enabled:  r.boolean("REDIS_ENABLED", false),
			Host:     r.str("REDIS_HOST", "localhost"),
			Port:     r.str("REDIS_PORT", "6379"),
			Password: r.str("REDIS_PASSWORD", ""),
			DB:       r.integer("REDIS_DB", 0),
			TTL:      r.duration("SUGGESTION_CACHE_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			Enabled:    r.boolean("AUTH_ENABLED", false),
			JWTSecret:  r.str("JWT_SECRET", ""),
			Expiration: r.duration("JWT_EXPIRATION", 24*time.Hour),
		},
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証します。
func (c *Config) Validate() error {
	var errs []error

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be numeric, got %q", c.Server.Port))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format))
	}

	switch c.Classifier.Backend {
	case ClassifierONNX:
		if c.Classifier.ModelPath == "" || c.Classifier.MetadataPath == "" {
			errs = append(errs, errors.New("ONNX_MODEL_PATH and ONNX_METADATA_PATH are required for the onnx classifier"))
		}
	case ClassifierVision:
	default:
		errs = append(errs, fmt.Errorf("CLASSIFIER_BACKEND must be onnx or vision, got %q", c.Classifier.Backend))
	}
	if c.Classifier.TopK <= 0 {
		errs = append(errs, errors.New("CLASSIFIER_TOP_K must be positive"))
	}
	if c.Classifier.MaxPixels <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_PIXELS must be positive"))
	}

	switch c.Generator.Backend {
	case GeneratorGemini:
	case GeneratorOpenAI:
		if c.Generator.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai generator"))
		}
	default:
		errs = append(errs, fmt.Errorf("GENERATOR_BACKEND must be gemini or openai, got %q", c.Generator.Backend))
	}
	if c.Generator.MaxAttempts <= 0 {
		errs = append(errs, errors.New("GENERATION_MAX_ATTEMPTS must be positive"))
	}
	if c.Generator.RetryMaxDelay < c.Generator.RetryBaseDelay {
		errs = append(errs, errors.New("GENERATION_RETRY_MAX_DELAY must not be shorter than GENERATION_RETRY_BASE_DELAY"))
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when AUTH_ENABLED is true"))
	}

	return errors.Join(errs...)
}

// reader は環境変数を型変換しながら読み込み、変換エラーを蓄積します。
type reader struct {
	errs []error
}

func (r *reader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return def
	}
	return n
}

func (r *reader) number(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s must be a number, got %q", key, v))
		return def
	}
	return f
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s must be a duration (e.g. 30s), got %q", key, v))
		return def
	}
	return d
}

func (r *reader) list(key string) []string {
	v := r.str(key, "")
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
