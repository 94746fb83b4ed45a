// Package dto はOpenAI互換Chat Completions APIのリクエスト・レスポンス形式を定義します。
package dto

// ChatMessage は会話の1メッセージです。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest は /chat/completions へのリクエストです。
type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// ChatCompletionResponse は /chat/completions のレスポンスです。
type ChatCompletionResponse struct {
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *APIError `json:"error,omitempty"`
}

// APIError はエラーレスポンスの本文です。
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}
