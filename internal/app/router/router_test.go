package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"photo_backend/internal/feature/sceneinsight/domain/entity"
	scenehandler "photo_backend/internal/feature/sceneinsight/transport/handler"
	"photo_backend/internal/platform/http/handler"
	"photo_backend/internal/platform/http/middleware"
	jwtmw "photo_backend/internal/platform/jwt"
	"photo_backend/internal/platform/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubUsecase は固定の結果を返すSceneInsightUsecaseです。
type stubUsecase struct{}

func (stubUsecase) Analyze(ctx context.Context, imageData []byte) (*entity.Insight, error) {
	return &entity.Insight{Label: "seashore", Suggestions: []string{"Use a tripod"}}, nil
}

func (stubUsecase) Classify(ctx context.Context, imageData []byte) (*entity.Classification, error) {
	return &entity.Classification{Label: "seashore", Confidence: 1}, nil
}

func (stubUsecase) Suggest(ctx context.Context, label string) (*entity.Insight, error) {
	return &entity.Insight{Label: label, Suggestions: []string{"Use a tripod"}}, nil
}

func newTestRouter(mod func(*Deps)) *gin.Engine {
	d := Deps{
		Logger:  zap.NewNop(),
		Metrics: metrics.New(),
		Scene:   scenehandler.NewSceneInsightHandler(stubUsecase{}, zap.NewNop()),
	}
	if mod != nil {
		mod(&d)
	}
	return NewRouter(d)
}

func suggestionRequest() *http.Request {
	req, _ := http.NewRequest(http.MethodPost, "/v1/scene/suggestions", strings.NewReader(`{"label":"seashore"}`))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestNewRouter_Health(t *testing.T) {
	r := newTestRouter(nil)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(method, "/healthz", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, method)
		assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/healthz", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNewRouter_Readiness(t *testing.T) {
	tests := []struct {
		name           string
		checks         map[string]handler.Check
		expectedStatus int
	}{
		{"no checks", nil, http.StatusOK},
		{"all ready", map[string]handler.Check{"classifier": func(context.Context) error { return nil }}, http.StatusOK},
		{"redis down", map[string]handler.Check{
			"classifier": func(context.Context) error { return nil },
			"redis":      func(context.Context) error { return errors.New("connection refused") },
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(func(d *Deps) { d.Readiness = tt.checks })

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/readyz", nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestNewRouter_Metrics(t *testing.T) {
	r := newTestRouter(nil)

	r.ServeHTTP(httptest.NewRecorder(), suggestionRequest())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="POST",path="/v1/scene/suggestions",status="200"} 1`)
}

func TestNewRouter_MetricsDisabled(t *testing.T) {
	r := newTestRouter(func(d *Deps) { d.Metrics = nil })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_SceneRoutes(t *testing.T) {
	r := newTestRouter(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, suggestionRequest())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"label":"seashore","description":"This image appears to contain: seashore.","suggestions":["Use a tripod"],"degraded":false}`, w.Body.String())
}

func TestNewRouter_Auth(t *testing.T) {
	const secret = "test-secret"
	r := newTestRouter(func(d *Deps) {
		d.AuthEnabled = true
		d.JWTSecret = secret
	})

	t.Run("rejects request without token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, suggestionRequest())

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("accepts valid token", func(t *testing.T) {
		token, err := jwtmw.NewGenerator(secret, time.Hour).GenerateToken("mobile-app")
		require.NoError(t, err)

		req := suggestionRequest()
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("health stays public", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestNewRouter_CORS(t *testing.T) {
	r := newTestRouter(func(d *Deps) { d.AllowedOrigins = []string{"https://app.example.com"} })

	req := suggestionRequest()
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
