package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/login-gate/internal/captcha"
	"github.com/yourusername/login-gate/internal/logutil"
	"github.com/yourusername/login-gate/internal/pages"
	"github.com/yourusername/login-gate/internal/session"
)

// ルート
const (
	PathForm    = "/"
	PathLogin   = "/login"
	PathCaptcha = "/captcha"
	PathHome    = "/inicio"
	PathLogout  = "/logout"
)

// フォームのフィールド名
const (
	fieldUsername = "usuario"
	fieldPassword = "clave"
	fieldRole     = "rol"
	fieldSubject  = "materia"
	fieldCaptcha  = "captcha"
	fieldCSRF     = "csrf_token"
)

// Handler はログイン関連のHTTPハンドラーをまとめた構造体です。
type Handler struct {
	protocol *Protocol
	issuer   *captcha.Issuer
}

// NewHandler は Handler を作成します。
func NewHandler(protocol *Protocol, issuer *captcha.Issuer) *Handler {
	return &Handler{protocol: protocol, issuer: issuer}
}

// Form は GET / のハンドラーです。前回のエラーと入力値は一度だけ表示します。
func (h *Handler) Form(c *gin.Context) {
	sess := session.FromContext(c)
	if IsAuthenticated(sess) {
		c.Redirect(http.StatusSeeOther, PathHome)
		return
	}

	flash := TakeFlash(sess)
	if !commit(c, sess) {
		return
	}
	c.HTML(http.StatusOK, pages.Login, pages.NewLoginView(
		flash.Error, flash.Old.Username, flash.Old.Role, flash.Old.Subject, PathCaptcha,
	))
}

// Login は /login のハンドラーです。POST 以外は何も処理せずフォームへ戻します。
func (h *Handler) Login(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Redirect(http.StatusSeeOther, PathForm)
		return
	}

	sess := session.FromContext(c)
	attempt := NewAttempt(
		c.PostForm(fieldUsername),
		c.PostForm(fieldPassword),
		c.PostForm(fieldRole),
		c.PostForm(fieldSubject),
		c.PostForm(fieldCaptcha),
	)

	loginErr := h.protocol.Login(c.Request.Context(), sess, attempt)
	if !commit(c, sess) {
		return
	}

	if loginErr != nil {
		c.Redirect(http.StatusSeeOther, PathForm)
		return
	}
	c.Redirect(http.StatusSeeOther, PathHome)
}

// Captcha は GET /captcha のハンドラーです。呼ばれるたびに新しいコードを発行します。
func (h *Handler) Captcha(c *gin.Context) {
	sess := session.FromContext(c)
	code := h.issuer.Issue(sess)
	if !commit(c, sess) {
		return
	}

	img, err := captcha.Render(code)
	if err != nil {
		logger := logutil.GetOrDefault(c.Request.Context())
		logger.Error().Err(err).Msg("failed to render captcha")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "CAPTCHA_RENDER_FAILED",
			"message": "No se pudo generar el captcha.",
		})
		return
	}

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, captcha.ContentType, img)
}

// Home は GET /inicio のハンドラーです。RequireLogin の後に登録します。
func (h *Handler) Home(c *gin.Context) {
	sess := session.FromContext(c)
	username, _ := sess.Get(KeyUsername)
	role, _ := sess.Get(KeyRole)
	subject, _ := sess.Get(KeySubject)
	token, _ := sess.Get(KeyCSRF)

	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, pages.Home, pages.NewHomeView(username, role, subject, token))
}

// Logout は POST /logout のハンドラーです。サーバー側のセッションを破棄します。
func (h *Handler) Logout(c *gin.Context) {
	sess := session.FromContext(c)
	if err := sess.Destroy(c.Request.Context()); err != nil {
		logger := logutil.GetOrDefault(c.Request.Context())
		logger.Error().Err(err).Msg("failed to destroy session")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "SESSION_DELETE_FAILED",
			"message": "No se pudo cerrar la sesión.",
		})
		return
	}
	if !commit(c, sess) {
		return
	}
	c.Redirect(http.StatusSeeOther, PathForm)
}

// commit はセッションを保存します。失敗時は 503 を返して false を返します。
func commit(c *gin.Context, sess *session.Session) bool {
	if err := session.Commit(c, sess); err != nil {
		logger := logutil.GetOrDefault(c.Request.Context())
		logger.Error().Err(err).Msg("failed to save session")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "Servicio no disponible. Intente nuevamente.",
		})
		return false
	}
	return true
}
