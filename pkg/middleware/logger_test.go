package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestAccessLogger はアクセスログにクエリ文字列が出力されないことを検証する。
func TestAccessLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	router := gin.New()
	router.Use(AccessLogger(&buf))
	router.GET("/api/v1/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me?token=secret-token&page=2", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	if !strings.Contains(line, `GET     "/api/v1/me"`) {
		t.Errorf("アクセスログにパスが含まれない: %q", line)
	}
	if strings.Contains(line, "secret-token") || strings.Contains(line, "?") {
		t.Errorf("アクセスログにクエリが含まれる: %q", line)
	}
	if !strings.Contains(line, "| 200 |") {
		t.Errorf("アクセスログにステータスコードが含まれない: %q", line)
	}
}
