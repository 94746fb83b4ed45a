package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"photo_backend/internal/api"
	"photo_backend/internal/feature/sceneinsight/domain"
	"photo_backend/internal/feature/sceneinsight/domain/entity"
	"photo_backend/internal/feature/sceneinsight/usecase"
	"photo_backend/internal/platform/http/middleware"
)

// formField は画像を受け取るmultipartフィールド名です。
const formField = "image"

// multipartOverhead はmultipartの境界・ヘッダー分としてボディ上限に加算する余裕です。
const multipartOverhead = 1 << 20

// SceneInsightUsecase はシーン解析のユースケースを定義するインターフェースです。
type SceneInsightUsecase interface {
	Analyze(ctx context.Context, imageData []byte) (*entity.Insight, error)
	Classify(ctx context.Context, imageData []byte) (*entity.Classification, error)
	Suggest(ctx context.Context, label string) (*entity.Insight, error)
}

// SceneInsightHandler はシーン解析関連のHTTPリクエストを処理します。
type SceneInsightHandler struct {
	uc  SceneInsightUsecase
	log *zap.Logger
}

// NewSceneInsightHandler はSceneInsightHandlerを生成します。
func NewSceneInsightHandler(uc SceneInsightUsecase, log *zap.Logger) *SceneInsightHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SceneInsightHandler{uc: uc, log: log}
}

// Analyze はアップロードされた画像のシーンを分類し、撮影アドバイスを返します。
// POST /v1/scene/analyze (multipart/form-data, field: image)
func (h *SceneInsightHandler) Analyze(c *gin.Context) {
	data, ok := h.readImage(c)
	if !ok {
		return
	}

	insight, err := h.uc.Analyze(c.Request.Context(), data)
	if err != nil {
		h.respondError(c, "analyze", err)
		return
	}

	c.JSON(http.StatusOK, toInsightResponse(insight))
}

// Classify はアップロードされた画像のシーン分類結果のみを返します。
// POST /v1/scene/classify (multipart/form-data, field: image)
func (h *SceneInsightHandler) Classify(c *gin.Context) {
	data, ok := h.readImage(c)
	if !ok {
		return
	}

	cls, err := h.uc.Classify(c.Request.Context(), data)
	if err != nil {
		h.respondError(c, "classify", err)
		return
	}

	candidates := make([]api.ScenePredictionResponse, 0, len(cls.Candidates))
	for _, p := range cls.Candidates {
		candidates = append(candidates, api.ScenePredictionResponse{Label: p.Label, Confidence: p.Confidence})
	}
	c.JSON(http.StatusOK, api.SceneClassificationResponse{
		Label:      cls.Label,
		Confidence: cls.Confidence,
		Candidates: candidates,
	})
}

// Suggest は指定されたシーンラベルの撮影アドバイスを返します。
// POST /v1/scene/suggestions (application/json)
func (h *SceneInsightHandler) Suggest(c *gin.Context) {
	var req api.SceneSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "labelは必須です", Kind: "validation"})
		return
	}

	insight, err := h.uc.Suggest(c.Request.Context(), req.Label)
	if err != nil {
		h.respondError(c, "suggest", err)
		return
	}

	c.JSON(http.StatusOK, toInsightResponse(insight))
}

// readImage はmultipartの画像ファイルを読み込みます。
// 失敗時はレスポンスを書き込み、falseを返します。
func (h *SceneInsightHandler) readImage(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, usecase.MaxImageSize+multipartOverhead)

	file, err := c.FormFile(formField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(c, "upload", domain.ErrImageTooLarge)
			return nil, false
		}
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "画像ファイルが必要です", Kind: "validation"})
		return nil, false
	}
	if file.Size == 0 {
		h.respondError(c, "upload", domain.ErrImageRequired)
		return nil, false
	}
	if file.Size > usecase.MaxImageSize {
		h.respondError(c, "upload", domain.ErrImageTooLarge)
		return nil, false
	}

	src, err := file.Open()
	if err != nil {
		h.log.Error("failed to open uploaded file", zap.String("request_id", c.GetString(middleware.ContextRequestID)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "ファイルの読み込みに失敗しました", Kind: "internal"})
		return nil, false
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, usecase.MaxImageSize+1))
	if err != nil {
		h.log.Error("failed to read uploaded file", zap.String("request_id", c.GetString(middleware.ContextRequestID)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "ファイルの読み込みに失敗しました", Kind: "internal"})
		return nil, false
	}
	return data, true
}

// respondError はエラーの種別に応じたステータスとメッセージを返します。
func (h *SceneInsightHandler) respondError(c *gin.Context, op string, err error) {
	status, resp := classifyError(err)
	_ = c.Error(err)

	fields := []zap.Field{
		zap.String("request_id", c.GetString(middleware.ContextRequestID)),
		zap.String("op", op),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("scene insight request failed", fields...)
	} else {
		h.log.Warn("scene insight request rejected", fields...)
	}

	c.JSON(status, resp)
}

// classifyError はエラーをHTTPステータスとレスポンスに対応付けます。
// タイムアウトは生成失敗より優先して504とします。
func classifyError(err error) (int, api.ErrorResponse) {
	switch {
	case errors.Is(err, domain.ErrImageRequired):
		return http.StatusBadRequest, api.ErrorResponse{Error: "画像ファイルが空です", Kind: "validation"}
	case errors.Is(err, domain.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: "画像サイズは10MB以下にしてください", Kind: "validation"}
	case errors.Is(err, domain.ErrInvalidLabel):
		return http.StatusBadRequest, api.ErrorResponse{Error: "シーンラベルが不正です", Kind: "validation"}
	case errors.Is(err, domain.ErrDecode):
		return http.StatusBadRequest, api.ErrorResponse{Error: "画像を読み込めませんでした。対応形式の画像を指定してください", Kind: domain.KindDecode.String()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, api.ErrorResponse{Error: "処理がタイムアウトしました", Kind: "timeout"}
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, api.ErrorResponse{Error: "リクエストがキャンセルされました", Kind: "canceled"}
	case errors.Is(err, domain.ErrInference):
		return http.StatusInternalServerError, api.ErrorResponse{Error: "シーンの分類に失敗しました", Kind: domain.KindInference.String()}
	case errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway, api.ErrorResponse{Error: "撮影アドバイスの生成に失敗しました", Kind: domain.KindGeneration.String()}
	default:
		return http.StatusInternalServerError, api.ErrorResponse{Error: "内部エラーが発生しました", Kind: "internal"}
	}
}

func toInsightResponse(i *entity.Insight) api.SceneInsightResponse {
	suggestions := i.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return api.SceneInsightResponse{
		Label:       i.Label,
		Description: i.Description(),
		Suggestions: suggestions,
		Degraded:    i.Degraded,
		Warning:     i.Warning,
	}
}
