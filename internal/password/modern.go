package password

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ModernHash はアルゴリズム識別子付きの保存値（bcrypt / Argon2 の PHC 形式）です。
type ModernHash string

func (h ModernHash) Kind() Kind { return KindModern }

// Verify は各アルゴリズム標準の定数時間比較で検証します。
func (h ModernHash) Verify(plaintext string) bool {
	encoded := string(h)
	if strings.HasPrefix(encoded, "$argon2") {
		return verifyArgon2(plaintext, encoded)
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext)) == nil
}

type argon2Params struct {
	variant     string
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// PHC 文字列のソルトとハッシュはパディングなしの base64。末尾の余りビットも厳密に検査する
var phcEncoding = base64.RawStdEncoding.Strict()

func verifyArgon2(plaintext, encoded string) bool {
	p, err := parseArgon2(encoded)
	if err != nil {
		return false
	}

	keyLen := uint32(len(p.hash))
	var computed []byte
	switch p.variant {
	case "argon2id":
		computed = argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.parallelism, keyLen)
	case "argon2i":
		computed = argon2.Key([]byte(plaintext), p.salt, p.time, p.memory, p.parallelism, keyLen)
	default:
		return false
	}
	return subtle.ConstantTimeCompare(computed, p.hash) == 1
}

func parseArgon2(encoded string) (*argon2Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}

	p := &argon2Params{variant: parts[1]}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.New("invalid argon2 parameter")
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil || n == 0 {
			return nil, errors.New("invalid argon2 parameter value")
		}
		switch name {
		case "m":
			p.memory = uint32(n)
		case "t":
			p.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, errors.New("invalid argon2 parallelism")
			}
			p.parallelism = uint8(n)
		default:
			return nil, errors.New("unknown argon2 parameter")
		}
	}
	if p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, errors.New("missing argon2 parameter")
	}

	if p.salt, err = phcEncoding.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return nil, errors.New("invalid salt encoding")
	}
	if p.hash, err = phcEncoding.DecodeString(parts[5]); err != nil || len(p.hash) == 0 {
		return nil, errors.New("invalid hash encoding")
	}
	return p, nil
}
