package featmy

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes shared with the identity provider implementations. The manager
// translates these into user-facing copy, falling back to the raw message.
const (
	TextCodeEmailInUse      = "EMAIL_IN_USE"
	TextCodeWeakPassword    = "WEAK_PASSWORD"
	TextCodeInvalidEmail    = "INVALID_EMAIL"
	TextCodeUserNotFound    = "USER_NOT_FOUND"
	TextCodeWrongPassword   = "WRONG_PASSWORD"
	TextCodeTooManyRequests = "TOO_MANY_REQUESTS"
	TextCodeUserDisabled    = "USER_DISABLED"

	textCodeAccountDisabled = "ACCOUNT_DISABLED"
	textCodeDataIntegrity   = "DATA_INTEGRITY"
	textCodeNotPersonal     = "NOT_PERSONAL"
	textCodeStudentExists   = "STUDENT_EXISTS"
	textCodePendingMissing  = "PENDING_NOT_FOUND"
	textCodeActivationAuth  = "ACTIVATION_AUTH"
	textCodeStudentNotOwned = "STUDENT_NOT_OWNED"
)

// ErrAccountDisabled is returned when a student with status inactive attempts
// to log in. The session is torn down before this is returned.
var ErrAccountDisabled = goerrors.New("account is disabled", goerrors.CategoryAuth).
	WithTextCode(textCodeAccountDisabled).
	WithCode(goerrors.CodeUnauthorized)

// ErrDataIntegrity is returned when an authenticated identity has no profile
// record. The session is unrecoverable and is not kept.
var ErrDataIntegrity = goerrors.New("authenticated identity has no profile record", goerrors.CategoryInternal).
	WithTextCode(textCodeDataIntegrity).
	WithCode(goerrors.CodeInternal)

// ErrNotPersonal is returned when an operation reserved for trainers is
// attempted with any other role.
var ErrNotPersonal = goerrors.New("operation requires the personal role", goerrors.CategoryAuthz).
	WithTextCode(textCodeNotPersonal).
	WithCode(goerrors.CodeForbidden)

// ErrStudentExists is returned when a trainer registers a student with an
// email that already has a profile record.
var ErrStudentExists = goerrors.New("a profile already exists for this email", goerrors.CategoryConflict).
	WithTextCode(textCodeStudentExists).
	WithCode(goerrors.CodeConflict)

// ErrPendingNotFound is returned during activation when the provisional
// record is gone, e.g. the trainer deleted the student before activation.
var ErrPendingNotFound = goerrors.New("provisional profile record not found", goerrors.CategoryNotFound).
	WithTextCode(textCodePendingMissing).
	WithCode(goerrors.CodeNotFound)

// ErrActivationAuth is returned when activation finds the email already
// registered but the supplied password does not open that account.
var ErrActivationAuth = goerrors.New("could not authenticate existing activation account", goerrors.CategoryAuth).
	WithTextCode(textCodeActivationAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrStudentNotOwned is returned when a trainer manages a record that is not
// a student of theirs.
var ErrStudentNotOwned = goerrors.New("student belongs to another trainer", goerrors.CategoryAuthz).
	WithTextCode(textCodeStudentNotOwned).
	WithCode(goerrors.CodeForbidden)

func validationError(msg string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest)
}

// userMessages maps text codes to the copy shown to end users. The product
// ships in pt-BR.
var userMessages = map[string]string{
	TextCodeEmailInUse:      "Este e-mail já está em uso.",
	TextCodeWeakPassword:    "A senha deve ter pelo menos 6 caracteres.",
	TextCodeInvalidEmail:    "E-mail inválido.",
	TextCodeUserNotFound:    "E-mail ou senha incorretos.",
	TextCodeWrongPassword:   "E-mail ou senha incorretos.",
	TextCodeTooManyRequests: "Muitas tentativas. Tente novamente mais tarde.",
	TextCodeUserDisabled:    "Esta conta foi desativada.",
	textCodeAccountDisabled: "Sua conta está inativa. Fale com seu personal.",
	textCodeDataIntegrity:   "Não foi possível carregar seu perfil. Tente novamente.",
	textCodeNotPersonal:     "Apenas personal trainers podem executar esta ação.",
	textCodeStudentExists:   "Já existe um aluno cadastrado com este e-mail.",
	textCodePendingMissing:  "Cadastro não encontrado. Fale com seu personal.",
	textCodeActivationAuth:  "Não foi possível ativar a conta com esta senha.",
	textCodeStudentNotOwned: "Este aluno não está vinculado à sua conta.",
}

// UserMessage resolves a human-readable message for an operation error,
// translating known text codes and defaulting to the raw message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if msg, ok := userMessages[richErr.TextCode]; ok {
			return msg
		}
		return richErr.Message
	}

	return err.Error()
}

// IsNotFound reports whether err represents an absent record.
func IsNotFound(err error) bool {
	return goerrors.IsNotFound(err)
}

// NewRecordNotFound builds the not-found error document stores return for
// absent keys.
func NewRecordNotFound(collection, key string) *goerrors.Error {
	return goerrors.New("record not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{
			"collection": collection,
			"key":        key,
		})
}
