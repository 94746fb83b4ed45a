package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	scenehandler "photo_backend/internal/feature/sceneinsight/transport/handler"
	"photo_backend/internal/platform/http/handler"
	"photo_backend/internal/platform/http/middleware"
	jwtmw "photo_backend/internal/platform/jwt"
	"photo_backend/internal/platform/metrics"
)

// Deps はルーター構築に必要な依存です。
type Deps struct {
	Logger         *zap.Logger
	Metrics        *metrics.Metrics         // nilの場合は /metrics を公開しない
	Scene          *scenehandler.SceneInsightHandler
	Readiness      map[string]handler.Check // /readyz で確認する依存先
	AllowedOrigins []string                 // 空の場合はCORSを無効化
	AuthEnabled    bool
	JWTSecret      string
}

func NewRouter(d Deps) *gin.Engine {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(log), middleware.Recovery(log))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
			ExposeHeaders:    []string{middleware.HeaderRequestID},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 認証不要
	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	r.OPTIONS("/healthz", handler.Health)
	// 依存先の準備状態
	r.GET("/readyz", handler.Readiness(d.Readiness))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// AUTH_ENABLED の場合は Bearer トークンが必要
	v1 := r.Group("/v1")
	if d.AuthEnabled {
		v1.Use(jwtmw.AuthRequired(d.JWTSecret))
	}
	scene := v1.Group("/scene")
	{
		scene.POST("/analyze", d.Scene.Analyze)
		scene.POST("/classify", d.Scene.Classify)
		scene.POST("/suggestions", d.Scene.Suggest)
	}

	return r
}
