package server

import (
	"context"
	"io"
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/login-gate/internal/auth"
	"github.com/yourusername/login-gate/internal/captcha"
	"github.com/yourusername/login-gate/internal/config"
	"github.com/yourusername/login-gate/internal/session"
	"github.com/yourusername/login-gate/internal/users"
)

const (
	seedUser     = "fcytuader"
	seedPassword = "programacionavanzada"
	seedSubject  = "Programacion Avanzada"
)

// recordingStore は最後に保存されたセッションを覚えておくストアです。
type recordingStore struct {
	*session.MemoryStore

	mu     sync.Mutex
	lastID string
	last   map[string]string
}

func (r *recordingStore) record(id string, values map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID = id
	r.last = maps.Clone(values)
}

func (r *recordingStore) Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error {
	r.record(id, values)
	return r.MemoryStore.Save(ctx, id, values, ttl)
}

func (r *recordingStore) Rotate(ctx context.Context, oldID, newID string, values map[string]string, ttl time.Duration) error {
	r.record(newID, values)
	return r.MemoryStore.Rotate(ctx, oldID, newID, values, ttl)
}

func (r *recordingStore) snapshot() (string, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastID, maps.Clone(r.last)
}

func testConfig() *config.Config {
	return &config.Config{
		GinMode:            gin.TestMode,
		CORSAllowedOrigins: "http://localhost:8080",
		LogLevel:           "debug",
		SessionSecret:      "0123456789abcdef0123456789abcdef",
		SessionBackend:     config.SessionBackendMemory,
		SessionTTLMinutes:  30,
	}
}

func newTestRouter(t *testing.T) (http.Handler, *recordingStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo, err := users.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "db", "login.sqlite"), users.Seed{
		Username: seedUser,
		Password: seedPassword,
		Role:     users.RoleInstructor,
		Subject:  seedSubject,
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	store := &recordingStore{MemoryStore: session.NewMemoryStore()}
	router, err := NewRouter(Deps{
		Config:   testConfig(),
		Logger:   zerolog.Nop(),
		Users:    repo,
		Sessions: store,
	})
	require.NoError(t, err)
	return router, store
}

// browser はCookieを保持し、リダイレクトを追わないクライアントです。
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newBrowser(t *testing.T, handler http.Handler) *browser {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: srv.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	return resp, readBody(b.t, resp)
}

func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	return resp, readBody(b.t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func loginForm(user, pass, role, subject, code string) url.Values {
	return url.Values{
		"usuario": {user},
		"clave":   {pass},
		"rol":     {role},
		"materia": {subject},
		"captcha": {code},
	}
}

func requireRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, location, resp.Header.Get("Location"))
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	apitest.New().
		Handler(router).
		Get("/health").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.status", "ok")).
		Assert(jsonpath.Equal("$.service", serviceName)).
		End()
}

func TestCaptchaIsUncachedPNG(t *testing.T) {
	router, store := newTestRouter(t)

	apitest.New().
		Handler(router).
		Get(auth.PathCaptcha).
		Expect(t).
		Status(http.StatusOK).
		Header("Content-Type", "image/png").
		Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0").
		Header("Pragma", "no-cache").
		Header("Expires", "0").
		CookiePresent(session.CookieName).
		End()

	_, values := store.snapshot()
	assert.Len(t, values[captcha.SessionKey], captcha.Length)
}

func TestLoginRejectsNonPost(t *testing.T) {
	router, store := newTestRouter(t)

	apitest.New().
		Handler(router).
		Get(auth.PathLogin).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", auth.PathForm).
		End()

	assert.Zero(t, store.Len())
}

func TestHomeRequiresLogin(t *testing.T) {
	router, _ := newTestRouter(t)
	b := newBrowser(t, router)

	resp, _ := b.get(auth.PathHome)
	requireRedirect(t, resp, auth.PathForm)

	resp, body := b.get(auth.PathForm)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, auth.MessageLoginRequired)
}

func TestLoginFlow(t *testing.T) {
	router, store := newTestRouter(t)
	b := newBrowser(t, router)

	resp, _ := b.get(auth.PathCaptcha)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, values := store.snapshot()
	code := values[captcha.SessionKey]
	require.Len(t, code, captcha.Length)

	// 画像認証は正しいがパスワードが誤り。コードは破棄されない
	for i := 0; i < 2; i++ {
		resp, _ = b.post(auth.PathLogin, loginForm(seedUser, "incorrecta", "docente", seedSubject, code))
		requireRedirect(t, resp, auth.PathForm)
	}

	resp, body := b.get(auth.PathForm)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, auth.MessageInvalidCredentials)
	assert.Contains(t, body, `value="`+seedUser+`"`)

	// エラーは一度だけ表示される
	_, body = b.get(auth.PathForm)
	assert.NotContains(t, body, auth.MessageInvalidCredentials)

	preLoginID, _ := store.snapshot()

	resp, _ = b.post(auth.PathLogin, loginForm(seedUser, " "+seedPassword+" ", "docente", seedSubject, strings.ToLower(code)))
	requireRedirect(t, resp, auth.PathHome)

	postLoginID, values := store.snapshot()
	assert.NotEqual(t, preLoginID, postLoginID)
	_, err := store.Load(context.Background(), preLoginID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, "1", values[auth.KeyAuthenticated])
	assert.Equal(t, seedUser, values[auth.KeyUsername])
	assert.NotContains(t, values, captcha.SessionKey)

	resp, body = b.get(auth.PathHome)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Bienvenido, "+seedUser)
	assert.Contains(t, body, seedSubject)

	// 認証済みでフォームを開くとパネルへ戻される
	resp, _ = b.get(auth.PathForm)
	requireRedirect(t, resp, auth.PathHome)

	resp, _ = b.post(auth.PathLogout, url.Values{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = b.post(auth.PathLogout, url.Values{"csrf_token": {values[auth.KeyCSRF]}})
	requireRedirect(t, resp, auth.PathForm)
	_, err = store.Load(context.Background(), postLoginID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	resp, _ = b.get(auth.PathHome)
	requireRedirect(t, resp, auth.PathForm)
}

func TestLoginClaimsMismatchKeepsChallenge(t *testing.T) {
	router, store := newTestRouter(t)
	b := newBrowser(t, router)

	b.get(auth.PathCaptcha)
	_, values := store.snapshot()
	code := values[captcha.SessionKey]

	resp, _ := b.post(auth.PathLogin, loginForm(seedUser, seedPassword, "alumno", seedSubject, code))
	requireRedirect(t, resp, auth.PathForm)

	_, values = store.snapshot()
	assert.Equal(t, code, values[captcha.SessionKey])
	assert.Equal(t, auth.MessageClaimsMismatch, values[auth.KeyLoginError])
	assert.NotContains(t, values, auth.KeyAuthenticated)

	_, body := b.get(auth.PathForm)
	assert.Contains(t, body, auth.MessageClaimsMismatch)
	assert.Contains(t, body, `<option value="alumno" selected>`)
}

func TestForgedSessionCookieIsNotAdopted(t *testing.T) {
	router, store := newTestRouter(t)
	b := newBrowser(t, router)

	u, err := url.Parse(b.base)
	require.NoError(t, err)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: session.CookieName, Value: "attacker-chosen"}})

	resp, _ := b.get(auth.PathCaptcha)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	id, _ := store.snapshot()
	assert.NotEqual(t, "attacker-chosen", id)
	assert.Len(t, id, 64)
}
