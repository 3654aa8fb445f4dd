// Package logutil は zerolog のロガーをコンテキスト経由で受け渡すための補助関数を提供します。
package logutil

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type key byte

const (
	loggerKey key = 1

	// RequestIDHeader はリクエストIDを返すレスポンスヘッダーです。
	RequestIDHeader = "X-Request-Id"
)

// WithLogger は logger を保持したコンテキストを返します。
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetOrDefault はコンテキストのロガーを返します。未設定ならグローバルロガーを返します。
func GetOrDefault(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return log.Logger
	}
	v, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		return log.Logger
	}
	return v
}

// New はレベル文字列から JSON 出力のロガーを作成します。不正なレベルは info として扱います。
func New(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Middleware はリクエストごとにIDを振ったロガーをリクエストコンテキストへ設定し、
// 完了時にアクセスログを出力します。
func Middleware(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()

		logger := base.With().
			Str("request.id", requestID).
			Str("http.method", c.Request.Method).
			Str("http.path", c.Request.URL.Path).
			Logger()
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), logger))
		c.Header(RequestIDHeader, requestID)

		c.Next()

		logger.Info().
			Int("http.status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client.ip", c.ClientIP()).
			Msg("Request handled")
	}
}
