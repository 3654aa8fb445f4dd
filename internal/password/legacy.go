package password

import (
	"crypto/subtle"
	"regexp"
	"strings"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"
	"github.com/sergeymakinen/go-crypt/des"
)

// 従来型 DES crypt: ソルト2文字とハッシュ11文字
var traditionalDES = regexp.MustCompile(`^[./0-9A-Za-z]{13}$`)

// LegacyHash は識別子を持たない旧方式の保存値です。
// 値自体に再計算に必要なソルトとパラメータが含まれます。
type LegacyHash string

func (h LegacyHash) Kind() Kind { return KindLegacy }

// Verify は保存値のパラメータで平文からハッシュを再計算し、
// 符号化後の文字列同士を長さも含めて定数時間で比較します。
// 再計算できない保存値は不一致とします。
func (h LegacyHash) Verify(plaintext string) (ok bool) {
	encoded := string(h)

	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	if traditionalDES.MatchString(encoded) {
		// DES crypt は先頭8文字のみを使う
		return des.Check(encoded, plaintext) == nil
	}

	c := legacyCrypter(encoded)
	if c == nil {
		return false
	}
	computed, err := c.Generate([]byte(plaintext), []byte(encoded))
	if err != nil || len(computed) != len(encoded) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(encoded)) == 1
}

func legacyCrypter(encoded string) crypt.Crypter {
	switch {
	case strings.HasPrefix(encoded, "$6$"):
		return sha512_crypt.New()
	case strings.HasPrefix(encoded, "$5$"):
		return sha256_crypt.New()
	case strings.HasPrefix(encoded, "$1$"):
		return md5_crypt.New()
	default:
		return nil
	}
}
