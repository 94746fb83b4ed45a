// Package gemini はGoogle Gemini APIを使用した撮影アドバイス生成クライアントを提供します。
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"photo_backend/internal/feature/sceneinsight/domain"
	"photo_backend/internal/feature/sceneinsight/domain/entity"
	"photo_backend/internal/feature/sceneinsight/usecase"
)

const (
	// DefaultModel はGemini APIのデフォルトモデルです。
	DefaultModel = "gemini-2.5-flash"
)

// Config はGeminiクライアントの設定です。
type Config struct {
	// APIKey が空の場合はADCと環境変数
	// （GOOGLE_GENAI_USE_VERTEXAI, GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION）を使用します。
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiSuggestionGenerator はGoogle Gemini APIを使用して撮影アドバイスを生成します。
type GeminiSuggestionGenerator struct {
	client *genai.Client
	model  string
}

// GeminiSuggestionGeneratorがSuggestionGeneratorを実装していることをコンパイル時に検証します。
var _ usecase.SuggestionGenerator = (*GeminiSuggestionGenerator)(nil)

// NewGeminiSuggestionGenerator はGeminiSuggestionGeneratorの新しいインスタンスを生成します。
func NewGeminiSuggestionGenerator(ctx context.Context, cfg Config) (*GeminiSuggestionGenerator, error) {
	var cc *genai.ClientConfig
	if cfg.APIKey != "" || cfg.BaseURL != "" || cfg.HTTPClient != nil {
		cc = &genai.ClientConfig{
			HTTPClient:  cfg.HTTPClient,
			HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
		}
		if cfg.APIKey != "" {
			cc.APIKey = cfg.APIKey
			cc.Backend = genai.BackendGeminiAPI
		}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &GeminiSuggestionGenerator{client: client, model: model}, nil
}

// Generate はシステム指示とユーザー指示を送信し、生成されたテキストを返します。
func (g *GeminiSuggestionGenerator) Generate(ctx context.Context, prompt entity.Prompt) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt.User), config)
	if err != nil {
		return "", domain.GenerationError("gemini", fmt.Errorf("gemini API request failed: %w", err))
	}

	text := resp.Text()
	if text == "" {
		return "", domain.GenerationError("gemini", errors.New("gemini API returned no text"))
	}
	return text, nil
}
