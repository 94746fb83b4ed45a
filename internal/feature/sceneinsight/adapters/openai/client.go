// Package openai はOpenAI互換のChat Completions APIを使用した撮影アドバイス生成クライアントを提供します。
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"photo_backend/internal/feature/sceneinsight/adapters/openai/dto"
	"photo_backend/internal/feature/sceneinsight/domain"
	"photo_backend/internal/feature/sceneinsight/domain/entity"
	"photo_backend/internal/feature/sceneinsight/usecase"
)

const (
	// DefaultBaseURL はOpenAI APIの既定のベースURLです。
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel は既定のチャットモデルです。
	DefaultModel = "gpt-3.5-turbo"

	// エラー本文として読み込む最大バイト数
	maxErrorBody = 4 << 10
)

// Config はOpenAIクライアントの設定です。
type Config struct {
	APIKey  string // Bearer認証に使用するAPIキー
	BaseURL string // APIのベースURL（例: "https://api.openai.com/v1"）
	Model   string // チャットモデル名
}

// OpenAISuggestionGenerator はChat Completions APIを使用して撮影アドバイスを生成します。
type OpenAISuggestionGenerator struct {
	cfg    Config
	client *http.Client
}

// OpenAISuggestionGeneratorがSuggestionGeneratorを実装していることをコンパイル時に検証します。
var _ usecase.SuggestionGenerator = (*OpenAISuggestionGenerator)(nil)

// NewOpenAISuggestionGenerator は指定された設定とHTTPクライアントで新しいインスタンスを生成します。
func NewOpenAISuggestionGenerator(cfg Config, client *http.Client) *OpenAISuggestionGenerator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &OpenAISuggestionGenerator{cfg: cfg, client: client}
}

// Generate はシステムメッセージとユーザーメッセージを送信し、最初の選択肢の本文を返します。
func (o *OpenAISuggestionGenerator) Generate(ctx context.Context, prompt entity.Prompt) (string, error) {
	text, err := o.complete(ctx, prompt)
	if err != nil {
		return "", domain.GenerationError("openai", err)
	}
	return text, nil
}

func (o *OpenAISuggestionGenerator) complete(ctx context.Context, prompt entity.Prompt) (string, error) {
	payload, err := json.Marshal(dto.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []dto.ChatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	// リクエストオブジェクトを作成
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	// リクエストを実行
	res, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai API request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= 400 {
		return "", statusError(res)
	}

	var body dto.ChatCompletionResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Error != nil {
		return "", fmt.Errorf("openai: %s", body.Error.Message)
	}
	if len(body.Choices) == 0 {
		return "", errors.New("openai API returned no choices")
	}
	return body.Choices[0].Message.Content, nil
}

// statusError はエラーステータスのレスポンスからエラーを生成します。
func statusError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	var body dto.ChatCompletionResponse
	if json.Unmarshal(raw, &body) == nil && body.Error != nil && body.Error.Message != "" {
		return fmt.Errorf("openai http %d: %s", res.StatusCode, body.Error.Message)
	}
	return fmt.Errorf("openai http %d", res.StatusCode)
}
