package middleware

import (
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
)

// AccessLogger はアクセスログを出力するGinミドルウェアを返す。
// 出力形式はgin.Loggerと同じだが、クエリ文字列は出力しない。
func AccessLogger(out io.Writer) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    out,
		Formatter: accessLogFormatter,
	})
}

// accessLogFormatter はクエリを除いたパスでアクセスログの1行を組み立てる。
// クエリには?token=などの資格情報が含まれる。
func accessLogFormatter(param gin.LogFormatterParams) string {
	return fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %#v\n%s",
		param.TimeStamp.Format("2006/01/02 - 15:04:05"),
		param.StatusCode,
		param.Latency,
		param.ClientIP,
		param.Method,
		param.Request.URL.Path,
		param.ErrorMessage,
	)
}
