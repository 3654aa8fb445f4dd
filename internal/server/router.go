// Package server は gin ルーターとミドルウェアの配線を行います。
package server

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yourusername/login-gate/internal/auth"
	"github.com/yourusername/login-gate/internal/captcha"
	"github.com/yourusername/login-gate/internal/config"
	"github.com/yourusername/login-gate/internal/logutil"
	"github.com/yourusername/login-gate/internal/pages"
	"github.com/yourusername/login-gate/internal/session"
	"github.com/yourusername/login-gate/internal/users"
)

const (
	serviceName    = "login-gate"
	serviceVersion = "0.1.0"
)

// Deps はルーターが利用する依存関係です。
type Deps struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Users    users.Repository
	Sessions session.Store
}

// NewRouter はミドルウェアとルートを登録した gin エンジンを返します。
func NewRouter(d Deps) (*gin.Engine, error) {
	cfg := d.Config

	router := gin.New()
	router.Use(gin.Recovery(), logutil.Middleware(d.Logger))
	router.SetHTMLTemplate(pages.Templates())

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"X-CSRF-Token", // CSRF保護用ヘッダー
	}
	corsConfig.ExposeHeaders = []string{logutil.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	// Cookie にはセッションIDだけを署名付きで保存し、値はサーバー側のストアに置く
	secret, err := cookieSecret(cfg, d.Logger)
	if err != nil {
		return nil, err
	}
	cookieStore := cookie.NewStore(secret)
	cookieStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionTTLSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(session.CookieName, cookieStore))

	manager := session.NewManager(d.Sessions, cfg.SessionTTL())
	setupRoutes(router, d.Users, manager)
	return router, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}

func setupRoutes(router *gin.Engine, repo users.Repository, manager *session.Manager) {
	// セッション不要のヘルスチェック
	router.GET("/health", handleHealth)

	h := auth.NewHandler(auth.NewProtocol(repo), captcha.NewIssuer())

	pagesGroup := router.Group("")
	pagesGroup.Use(session.Middleware(manager))
	{
		pagesGroup.GET(auth.PathForm, h.Form)
		pagesGroup.GET(auth.PathCaptcha, h.Captcha)
		// ログイン時はまだ CSRF トークンがないため検証しない
		pagesGroup.GET(auth.PathLogin, h.Login)
		pagesGroup.POST(auth.PathLogin, h.Login)

		protected := pagesGroup.Group("")
		protected.Use(auth.RequireLogin(), auth.VerifyCSRF())
		{
			protected.GET(auth.PathHome, h.Home)
			protected.POST(auth.PathLogout, h.Logout)
		}
	}
}

// cookieSecret は Cookie 署名鍵を返します。
// 未設定の場合は起動ごとの一時鍵を生成します（release モードでは Validate が未設定を拒否する）。
func cookieSecret(cfg *config.Config, logger zerolog.Logger) ([]byte, error) {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret), nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	logger.Warn().Msg("SESSION_SECRET is not set; using an ephemeral key")
	return buf, nil
}
