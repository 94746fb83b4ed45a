// Package api はHTTP APIのリクエスト・レスポンス型を定義します。
package api

// ErrorResponse はエラー時の共通レスポンスです。
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// SceneInsightResponse はシーンラベルと撮影アドバイスのレスポンスです。
type SceneInsightResponse struct {
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Suggestions []string `json:"suggestions"`
	Degraded    bool     `json:"degraded"`
	Warning     string   `json:"warning,omitempty"`
}

// ScenePredictionResponse は分類候補の1件です。
type ScenePredictionResponse struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// SceneClassificationResponse はシーン分類のみのレスポンスです。
type SceneClassificationResponse struct {
	Label      string                    `json:"label"`
	Confidence float32                   `json:"confidence"`
	Candidates []ScenePredictionResponse `json:"candidates"`
}

// SceneSuggestionRequest はラベル指定で撮影アドバイスを求めるリクエストです。
type SceneSuggestionRequest struct {
	Label string `json:"label" binding:"required"`
}
