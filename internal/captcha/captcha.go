// Package captcha は画像認証用のコードを発行し、セッションに紐付けます。
package captcha

import (
	"crypto/rand"
	"crypto/subtle"
	"io"
	"strings"
)

const (
	// Alphabet は見間違えやすい文字（I, O, 0, 1）を除いた英大文字と数字です。
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// Length は発行するコードの文字数です。
	Length = 5

	// SessionKey は発行済みコードを保存するセッションキーです。
	SessionKey = "captcha"
)

// Binder はコードを保存するセッションです。
type Binder interface {
	Set(key, value string)
}

// Issuer はコードを発行します。
type Issuer struct {
	rand io.Reader
}

// NewIssuer は crypto/rand を使う Issuer を作成します。
func NewIssuer() *Issuer {
	return &Issuer{rand: rand.Reader}
}

// Issue は新しいコードを生成してセッションに保存し、そのコードを返します。
// 保存済みのコードは常に上書きされます。
func (i *Issuer) Issue(s Binder) string {
	code := strings.ToUpper(i.generate())
	s.Set(SessionKey, code)
	return code
}

// generate は Alphabet から一様にコードを生成します。
// 偏りを避けるため、Alphabet の長さの倍数を超えるバイトは捨てます。
func (i *Issuer) generate() string {
	limit := 256 - 256%len(Alphabet)
	out := make([]byte, 0, Length)
	buf := make([]byte, Length*2)
	for len(out) < Length {
		if _, err := io.ReadFull(i.rand, buf); err != nil {
			// crypto/rand は失敗しない。テスト用の Reader が尽きた場合のみ到達する
			panic("captcha: random source failed: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out)
}

// Matches は入力値と発行済みコードを定数時間で比較します。どちらかが空なら false です。
// input は呼び出し側で前後の空白除去と大文字化を済ませておきます。
func Matches(pending, input string) bool {
	if pending == "" || input == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.ToUpper(pending)), []byte(input)) == 1
}
