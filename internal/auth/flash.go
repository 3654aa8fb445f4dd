package auth

import "github.com/yourusername/login-gate/internal/users"

// FormValues は再表示用にフォームへ戻す入力値です。パスワードは含みません。
type FormValues struct {
	Username string
	Role     users.Role
	Subject  string
}

// Flash は次のフォーム表示で一度だけ読まれる状態です。
type Flash struct {
	Error string
	Old   FormValues
}

type flashState interface {
	Set(key, value string)
	Clear(key string)
}

type flashReader interface {
	Take(key string) (string, bool)
}

func writeFlash(s flashState, message string, a Attempt) {
	s.Set(KeyLoginError, message)
	s.Set(KeyOldUsername, a.Username)
	s.Set(KeyOldRole, string(a.Role))
	s.Set(KeyOldSubject, a.Subject)
}

func clearFlash(s flashState) {
	s.Clear(KeyLoginError)
	s.Clear(KeyOldUsername)
	s.Clear(KeyOldRole)
	s.Clear(KeyOldSubject)
}

// TakeFlash はエラーメッセージと入力値を読み出し、セッションから削除します。
// 不正なロールや科目は再表示しません。
func TakeFlash(s flashReader) Flash {
	var f Flash
	f.Error, _ = s.Take(KeyLoginError)
	f.Old.Username, _ = s.Take(KeyOldUsername)

	role, _ := s.Take(KeyOldRole)
	if r := users.Role(role); r.Valid() {
		f.Old.Role = r
	}
	subject, _ := s.Take(KeyOldSubject)
	if users.ValidSubject(subject) {
		f.Old.Subject = subject
	}
	return f
}
