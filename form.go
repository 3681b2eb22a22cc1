package session

// Field ids shared with UI form definitions.
const (
	FieldIdentifier   = "username"
	FieldSecret       = "password"
	FieldSecretRepeat = "repeatpassword"
)

// Operation names the credential operation a form belongs to; the same
// ErrorKind can land on different fields depending on the operation.
type Operation string

const (
	OpLogin    Operation = "login"
	OpRegister Operation = "register"
	OpGuest    Operation = "guest"
	OpLogout   Operation = "logout"
)

// User-facing messages. Invalid credentials and unknown account share one
// message on purpose so a failed login does not reveal whether the account
// exists.
const (
	msgCombinationIncorrect = "The combination of username and password is incorrect"
	msgSecretTooWeak        = "Password too weak"
	msgIdentifierTaken      = "This username is already taken"
	msgInvalidIdentifier    = "Invalid username"
	msgGeneric              = "Something went wrong, please try again later"
)

// Field describes one entry of a form submission record.
type Field struct {
	ID       string `json:"id"`
	Value    string `json:"value"`
	Required bool   `json:"required"`
	Faulty   bool   `json:"is_faulty"`
	Error    string `json:"error,omitempty"`
}

// LoginForm returns the field set for the login view.
func LoginForm() []Field {
	return []Field{
		{ID: FieldIdentifier, Required: true},
		{ID: FieldSecret, Required: true},
	}
}

// RegisterForm returns the field set for the registration view.
func RegisterForm() []Field {
	return []Field{
		{ID: FieldIdentifier, Required: true},
		{ID: FieldSecret, Required: true},
		{ID: FieldSecretRepeat, Required: true},
	}
}

// Annotate returns a new field list with the error for kind attached to the
// field responsible for it. At most one field is annotated; kinds without a
// field target (rate limiting, unknown) leave every field clean. The input
// slice is never mutated and prior annotations are cleared, so stale errors
// from an earlier attempt cannot leak into the new record.
func Annotate(fields []Field, op Operation, kind ErrorKind) []Field {
	out := Reset(fields)

	target, message := fieldForKind(op, kind)
	if target == "" {
		return out
	}

	for i := range out {
		if out[i].ID == target {
			out[i].Faulty = true
			out[i].Error = message
			break
		}
	}

	return out
}

// Reset returns a copy of fields with all error annotations cleared.
func Reset(fields []Field) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	for i := range out {
		out[i].Faulty = false
		out[i].Error = ""
	}
	return out
}

// GenericMessage returns the non-field message for kinds that have one, or ""
// when the kind annotates a specific field.
func GenericMessage(kind ErrorKind) string {
	switch kind {
	case KindRateLimited, KindUnknown:
		return msgGeneric
	}
	return ""
}

func fieldForKind(op Operation, kind ErrorKind) (string, string) {
	switch kind {
	case KindInvalidCredentials:
		return FieldSecret, msgCombinationIncorrect
	case KindAccountNotFound:
		return FieldIdentifier, msgCombinationIncorrect
	case KindWeakSecret:
		if op == OpRegister {
			return FieldSecretRepeat, msgSecretTooWeak
		}
		return FieldSecret, msgSecretTooWeak
	case KindIdentifierTaken:
		return FieldIdentifier, msgIdentifierTaken
	case KindInvalidIdentifier:
		return FieldIdentifier, msgInvalidIdentifier
	}
	return "", ""
}
