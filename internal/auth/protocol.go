// Package auth は画像認証付きログインの手順と、そのHTTPハンドラーを提供します。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/login-gate/internal/captcha"
	"github.com/yourusername/login-gate/internal/logutil"
	"github.com/yourusername/login-gate/internal/password"
	"github.com/yourusername/login-gate/internal/users"
)

// セッションキー
const (
	KeyAuthenticated = "authenticated"
	KeyUsername      = "username"
	KeyRole          = "role"
	KeySubject       = "subject"
	KeyIssuedAt      = "issued_at"
	KeyCSRF          = "csrf_token"

	KeyLoginError  = "login_error"
	KeyOldUsername = "old_username"
	KeyOldRole     = "old_role"
	KeyOldSubject  = "old_subject"
)

// State はログイン手順が読み書きするセッションです。
type State interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Clear(key string)
	Rotate(ctx context.Context) error
}

// Attempt はフォームから受け取った1回分のログイン入力です。
type Attempt struct {
	Username string
	Password string
	Role     users.Role
	Subject  string
	Captcha  string
}

// NewAttempt はフォームの値を正規化して Attempt を作成します。
// 利用者名・パスワード・画像認証は前後の空白を除き、画像認証は大文字にそろえます。
func NewAttempt(username, pass, role, subject, captchaInput string) Attempt {
	return Attempt{
		Username: strings.TrimSpace(username),
		Password: strings.TrimSpace(pass),
		Role:     users.Role(role),
		Subject:  subject,
		Captcha:  strings.ToUpper(strings.TrimSpace(captchaInput)),
	}
}

// Protocol はログインの検証手順です。
type Protocol struct {
	users  users.Repository
	verify func(plaintext, stored string) bool
	now    func() time.Time
}

// NewProtocol は Protocol を作成します。
func NewProtocol(repo users.Repository) *Protocol {
	return &Protocol{
		users:  repo,
		verify: password.Verify,
		now:    time.Now,
	}
}

// Login は attempt を検証し、成功時はセッションを認証済みにします。
// 失敗時は *Error を返し、エラーメッセージと入力値（パスワード以外）をセッションに残します。
// 画像認証コードは成功時にのみ破棄されるため、失敗後も同じコードで再試行できます。
func (p *Protocol) Login(ctx context.Context, s State, a Attempt) error {
	logger := logutil.GetOrDefault(ctx).With().Str("login.username", a.Username).Logger()

	record, err := p.authenticate(ctx, s, a)
	if err != nil {
		var authErr *Error
		if !errors.As(err, &authErr) {
			authErr = &Error{Kind: KindUnavailable, Reason: ReasonStoreUnavailable, Message: MessageStoreUnavailable, Err: err}
		}
		writeFlash(s, authErr.Message, a)

		if authErr.Kind == KindUnavailable {
			logger.Error().Err(authErr.Err).Str("login.reason", string(authErr.Reason)).Msg("Login failed")
		} else {
			logger.Info().Str("login.reason", string(authErr.Reason)).Msg("Login rejected")
		}
		return authErr
	}

	logger.Info().Object("login.user", record).Msg("Login succeeded")
	return nil
}

func (p *Protocol) authenticate(ctx context.Context, s State, a Attempt) (*users.Record, error) {
	if a.Username == "" || a.Password == "" {
		return nil, reject(KindValidation, ReasonMissingCredentials, MessageMissingCredentials)
	}
	if !a.Role.Valid() {
		return nil, reject(KindValidation, ReasonInvalidRole, MessageInvalidRole)
	}
	if !users.ValidSubject(a.Subject) {
		return nil, reject(KindValidation, ReasonInvalidSubject, MessageInvalidSubject)
	}

	pending, _ := s.Get(captcha.SessionKey)
	if !captcha.Matches(pending, a.Captcha) {
		return nil, reject(KindChallenge, ReasonCaptchaMismatch, MessageCaptchaMismatch)
	}

	record, err := p.users.FindByUsername(ctx, a.Username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, reject(KindAuthentication, ReasonUnknownUser, MessageInvalidCredentials)
		}
		return nil, &Error{Kind: KindUnavailable, Reason: ReasonStoreUnavailable, Message: MessageStoreUnavailable, Err: err}
	}

	if !p.verify(a.Password, record.PasswordHash) {
		return nil, reject(KindAuthentication, ReasonPasswordMismatch, MessageInvalidCredentials)
	}

	if record.Role != a.Role || record.Subject != a.Subject {
		return nil, reject(KindAuthentication, ReasonClaimsMismatch, MessageClaimsMismatch)
	}

	// セッション固定攻撃への対策として、権限が上がる前にIDを付け替える
	if err := s.Rotate(ctx); err != nil {
		return nil, &Error{Kind: KindUnavailable, Reason: ReasonStoreUnavailable, Message: MessageStoreUnavailable, Err: err}
	}

	token, err := generateToken()
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, Reason: ReasonStoreUnavailable, Message: MessageStoreUnavailable, Err: err}
	}

	s.Set(KeyAuthenticated, "1")
	s.Set(KeyUsername, record.Username)
	s.Set(KeyRole, string(record.Role))
	s.Set(KeySubject, record.Subject)
	s.Set(KeyIssuedAt, strconv.FormatInt(p.now().Unix(), 10))
	s.Set(KeyCSRF, token)
	s.Clear(captcha.SessionKey)
	clearFlash(s)
	return record, nil
}

// IsAuthenticated はセッションが認証済みかどうかを返します。
func IsAuthenticated(s interface{ Get(string) (string, bool) }) bool {
	flag, _ := s.Get(KeyAuthenticated)
	user, _ := s.Get(KeyUsername)
	return flag == "1" && user != ""
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
