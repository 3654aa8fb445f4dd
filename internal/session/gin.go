package session

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/login-gate/internal/logutil"
)

const (
	// CookieName はセッションIDを運ぶ署名付きCookieの名前です。
	CookieName = "lg_session"

	cookieKeyID = "sid"
	contextKey  = "session.current"
)

// Middleware は署名付きCookieからセッションIDを取り出し、サーバー側のセッションを開始します。
// sessions.Sessions(CookieName, ...) の後に登録してください。
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie := sessions.Default(c)
		id, _ := cookie.Get(cookieKeyID).(string)

		s, err := m.Start(c.Request.Context(), id)
		if err != nil {
			logger := logutil.GetOrDefault(c.Request.Context())
			logger.Error().Err(err).Msg("failed to start session")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"code":    "SESSION_UNAVAILABLE",
				"message": "Servicio no disponible. Intente nuevamente.",
			})
			return
		}

		c.Set(contextKey, s)
		c.Next()
	}
}

// FromContext は Middleware が開始したセッションを返します。
func FromContext(c *gin.Context) *Session {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}

// Commit はセッションをストアへ保存し、Cookie のセッションIDを更新します。
// レスポンスを書き込む前に呼ぶ必要があります。
func Commit(c *gin.Context, s *Session) error {
	if err := s.Save(c.Request.Context()); err != nil {
		return err
	}
	cookie := sessions.Default(c)
	cookie.Set(cookieKeyID, s.ID())
	return cookie.Save()
}
