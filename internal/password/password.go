// Package password は保存済みハッシュに対する平文パスワードの検証を提供します。
//
// 保存値はアルゴリズム識別子を持つ新方式（bcrypt, Argon2）と、
// 識別子を持たず値自体にソルトを含む旧方式（crypt(3) 系）のどちらかです。
// どちらも定数時間で比較し、不正な保存値は常に不一致として扱います。
package password

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Kind は保存値の形式です。
type Kind int

const (
	KindEmpty Kind = iota
	KindModern
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindModern:
		return "modern"
	case KindLegacy:
		return "legacy"
	default:
		return "empty"
	}
}

// Hash は形式判定済みの保存値です。
type Hash interface {
	Kind() Kind
	Verify(plaintext string) bool
}

var modernPrefixes = []string{
	"$2y$", "$2a$", "$2b$",
	"$argon2id$", "$argon2i$",
}

// Detect は保存値の形式を判定します。
func Detect(stored string) Kind {
	if stored == "" {
		return KindEmpty
	}
	for _, prefix := range modernPrefixes {
		if strings.HasPrefix(stored, prefix) {
			return KindModern
		}
	}
	return KindLegacy
}

// Parse は保存値を形式ごとの Hash に変換します。
func Parse(stored string) Hash {
	switch Detect(stored) {
	case KindModern:
		return ModernHash(stored)
	case KindLegacy:
		return LegacyHash(stored)
	default:
		return emptyHash{}
	}
}

// Verify は plaintext が stored に一致するかを返します。
func Verify(plaintext, stored string) bool {
	return Parse(stored).Verify(plaintext)
}

// Generate は新規登録用に bcrypt ハッシュを生成します。
func Generate(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// 空のハッシュはどの入力にも一致しない
type emptyHash struct{}

func (emptyHash) Kind() Kind { return KindEmpty }

func (emptyHash) Verify(_ string) bool { return false }
