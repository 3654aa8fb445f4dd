// Package users は利用者レコードの参照と、利用者テーブルの初期化を提供します。
package users

// Role は利用者の役割です。値はフォームから送信される文字列と一致します。
type Role string

const (
	RoleStudent    Role = "alumno"
	RoleInstructor Role = "docente"
)

// Valid は r が定義済みの役割かどうかを返します。
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor:
		return true
	default:
		return false
	}
}

// Subjects は選択可能な科目の一覧です（表示順）。
var Subjects = []string{
	"Ingenieria en Software 2",
	"Bases de Datos",
	"Programacion Avanzada",
	"Probabilidad y Estadistica",
	"Paradigma y Lenguajes",
	"Sistemas Operativos",
}

// ValidSubject は subject が科目一覧に含まれるかどうかを返します。
func ValidSubject(subject string) bool {
	for _, s := range Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// Record は usuarios テーブルの1行です。
type Record struct {
	Username     string
	PasswordHash string
	Role         Role
	Subject      string
}

// Seed は初期化時に投入するデモ用アカウントです。
type Seed struct {
	Username string
	Password string
	Role     Role
	Subject  string
}

// Enabled はシード投入を行うかどうかを返します。
func (s Seed) Enabled() bool {
	return s.Username != "" && s.Password != ""
}
