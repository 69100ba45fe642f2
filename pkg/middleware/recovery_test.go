package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/rails/pkg/railsclient"
	"github.com/nao1215/rails/pkg/visitor"
)

// TestRecovery はRecoveryミドルウェアを検証する。
func TestRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
	}{
		{name: "文字列", value: "テスト用パニック"},
		{name: "数値", value: 42},
		{name: "error型", value: http.ErrAbortHandler},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name+"のパニックで500が返ること", func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.Use(Recovery())
			router.GET("/panic", func(_ *gin.Context) {
				panic(tt.value)
			})

			w := doRequest(router, "/panic")
			if w.Code != http.StatusInternalServerError {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
			}

			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("レスポンスボディのパースに失敗: %v", err)
			}
			if body["error"] != "Internal server error" {
				t.Errorf("error = %q, want %q", body["error"], "Internal server error")
			}
		})
	}

	t.Run("パニックが発生しない場合は正常にレスポンスが返ること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.GET("/ok", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		w := doRequest(router, "/ok")
		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("RailsAuth内のパニックも捕捉され次のリクエストを処理できること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		protected := router.Group("/app")
		protected.Use(RailsAuth(RailsAuthConfig{
			NewClient: func() (*railsclient.Client, error) {
				panic("client factory panic")
			},
			Sessions: visitor.NewMemoryStore(),
			Cookie:   visitor.NewCookieCodec(testCookieSecret, time.Hour, false),
		}))
		protected.GET("", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/app?token=t", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("1回目のステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}

		w2 := doRequest(router, "/health")
		if w2.Code != http.StatusOK {
			t.Errorf("2回目のステータスコード = %d, want %d", w2.Code, http.StatusOK)
		}
	})
}
