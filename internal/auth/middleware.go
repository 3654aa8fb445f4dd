package auth

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/login-gate/internal/session"
)

const csrfHeader = "X-CSRF-Token"

// ログインからの最大有効期間。無操作による失効はセッションストアの TTL に任せる
var maxSessionLifetime = 12 * time.Hour

// RequireLogin は認証済みセッションを要求するミドルウェアです。
// 未認証ならメッセージを残してログイン画面へリダイレクトします。
func RequireLogin() gin.HandlerFunc {
	return requireLogin(time.Now)
}

func requireLogin(now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := session.FromContext(c)
		if !IsAuthenticated(sess) {
			sess.Set(KeyLoginError, MessageLoginRequired)
			if commit(c, sess) {
				c.Redirect(http.StatusSeeOther, PathForm)
				c.Abort()
			}
			return
		}

		issuedAt := readUnix(sess)
		if issuedAt.IsZero() || now().Sub(issuedAt) > maxSessionLifetime {
			if err := sess.Destroy(c.Request.Context()); err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"code":    "SESSION_DELETE_FAILED",
					"message": "Servicio no disponible. Intente nuevamente.",
				})
				return
			}
			sess.Set(KeyLoginError, MessageSessionExpired)
			if commit(c, sess) {
				c.Redirect(http.StatusSeeOther, PathForm)
				c.Abort()
			}
			return
		}

		// 保存し直すことでストア側の TTL を延長する
		if !commit(c, sess) {
			return
		}
		c.Next()
	}
}

// VerifyCSRF は状態を変更するリクエストの CSRF トークンを検証するミドルウェアです。
// トークンは X-CSRF-Token ヘッダーかフォームの csrf_token で受け取ります。
func VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		sess := session.FromContext(c)
		expected, _ := sess.Get(KeyCSRF)
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_MISSING",
				"message": "Token CSRF no configurado.",
			})
			return
		}

		received := c.GetHeader(csrfHeader)
		if received == "" {
			received = c.PostForm(fieldCSRF)
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_INVALID",
				"message": "Token CSRF inválido.",
			})
			return
		}

		c.Next()
	}
}

func readUnix(sess *session.Session) time.Time {
	raw, ok := sess.Get(KeyIssuedAt)
	if !ok {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
