package auth

// Kind はログイン拒否の分類です。
type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindChallenge      Kind = "CHALLENGE_MISMATCH"
	KindAuthentication Kind = "AUTHENTICATION_FAILED"
	KindUnavailable    Kind = "STORE_UNAVAILABLE"
)

// Reason は拒否理由です。ログには出しますが、利用者には Message だけを見せます。
type Reason string

const (
	ReasonMissingCredentials Reason = "missing_credentials"
	ReasonInvalidRole        Reason = "invalid_role"
	ReasonInvalidSubject     Reason = "invalid_subject"
	ReasonCaptchaMismatch    Reason = "captcha_mismatch"
	ReasonUnknownUser        Reason = "unknown_user"
	ReasonPasswordMismatch   Reason = "password_mismatch"
	ReasonClaimsMismatch     Reason = "claims_mismatch"
	ReasonStoreUnavailable   Reason = "store_unavailable"
)

// 利用者向けメッセージ
const (
	MessageMissingCredentials = "Debe completar usuario y contraseña."
	MessageInvalidRole        = "Debe seleccionar un rol válido."
	MessageInvalidSubject     = "Seleccione una materia válida."
	MessageCaptchaMismatch    = "El valor del captcha no es correcto."
	// 利用者の有無を推測されないよう、未登録とパスワード誤りで同じ文言を使う
	MessageInvalidCredentials = "Usuario o contraseña incorrectos."
	MessageClaimsMismatch     = "Los datos seleccionados no corresponden al usuario."
	MessageStoreUnavailable   = "No se pudo conectar a la base de datos. Intente nuevamente."
	MessageLoginRequired      = "Debe iniciar sesión para acceder al panel."
	MessageSessionExpired     = "La sesión expiró. Inicie sesión nuevamente."
)

// Error はログインが拒否されたことを表します。
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Reason) + ": " + e.Err.Error()
	}
	return string(e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func reject(kind Kind, reason Reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}
