// Package pages はログイン画面と認証後の画面のテンプレートを提供します。
package pages

import (
	"embed"
	"html/template"

	"github.com/yourusername/login-gate/internal/users"
)

//go:embed templates/*.html
var files embed.FS

// テンプレート名
const (
	Login = "login.html"
	Home  = "home.html"
)

const title = "Acceso al Campus"

var roleLabels = map[users.Role]string{
	users.RoleStudent:    "Alumno",
	users.RoleInstructor: "Docente",
}

// Option は select 要素の選択肢です。
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// LoginView はログイン画面の表示内容です。
type LoginView struct {
	Title      string
	Error      string
	Username   string
	Roles      []Option
	Subjects   []Option
	CaptchaURL string
}

// HomeView は認証後の画面の表示内容です。
type HomeView struct {
	Title     string
	Username  string
	Role      string
	Subject   string
	CSRFToken string
}

// Templates は埋め込んだテンプレートを解析して返します。
func Templates() *template.Template {
	return template.Must(template.ParseFS(files, "templates/*.html"))
}

// NewLoginView は前回の入力値を選択状態に反映したログイン画面を作成します。
func NewLoginView(errMsg, username string, role users.Role, subject, captchaURL string) LoginView {
	v := LoginView{
		Title:      title,
		Error:      errMsg,
		Username:   username,
		CaptchaURL: captchaURL,
	}
	for _, r := range []users.Role{users.RoleStudent, users.RoleInstructor} {
		v.Roles = append(v.Roles, Option{Value: string(r), Label: roleLabels[r], Selected: r == role})
	}
	for _, s := range users.Subjects {
		v.Subjects = append(v.Subjects, Option{Value: s, Label: s, Selected: s == subject})
	}
	return v
}

// NewHomeView は認証後の画面を作成します。
func NewHomeView(username, role, subject, csrfToken string) HomeView {
	label := roleLabels[users.Role(role)]
	if label == "" {
		label = role
	}
	return HomeView{
		Title:     title,
		Username:  username,
		Role:      label,
		Subject:   subject,
		CSRFToken: csrfToken,
	}
}
