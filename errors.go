package session

import (
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorKind is the provider-independent failure category surfaced to UI code.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindAccountNotFound    ErrorKind = "account_not_found"
	KindRateLimited        ErrorKind = "rate_limited"
	KindWeakSecret         ErrorKind = "weak_secret"
	KindIdentifierTaken    ErrorKind = "identifier_taken"
	KindInvalidIdentifier  ErrorKind = "invalid_identifier"
	KindUnknown            ErrorKind = "unknown"
)

// ErrInvalidCredentials is returned when the identifier/secret pair is wrong.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(string(KindInvalidCredentials)).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotFound is returned when no account matches the identifier.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(string(KindAccountNotFound)).
	WithCode(goerrors.CodeNotFound)

// ErrRateLimited is returned when the provider throttled the attempt.
var ErrRateLimited = goerrors.New("too many attempts", goerrors.CategoryRateLimit).
	WithTextCode(string(KindRateLimited))

// ErrWeakSecret is returned when the provider rejected the secret as too weak.
var ErrWeakSecret = goerrors.New("secret too weak", goerrors.CategoryValidation).
	WithTextCode(string(KindWeakSecret)).
	WithCode(goerrors.CodeBadRequest)

// ErrIdentifierTaken is returned when the derived identifier already exists.
var ErrIdentifierTaken = goerrors.New("identifier already taken", goerrors.CategoryConflict).
	WithTextCode(string(KindIdentifierTaken)).
	WithCode(goerrors.CodeConflict)

// ErrInvalidIdentifier is returned when the identifier is not addressable.
var ErrInvalidIdentifier = goerrors.New("invalid identifier", goerrors.CategoryBadInput).
	WithTextCode(string(KindInvalidIdentifier)).
	WithCode(goerrors.CodeBadRequest)

// ErrUnknown is the catch-all for provider failures outside the taxonomy.
var ErrUnknown = goerrors.New("authentication failed", goerrors.CategoryInternal).
	WithTextCode(string(KindUnknown))

// ErrMissingNamespaceSuffix is returned when configuration lacks the suffix
// used to build addressable identifiers from display names.
var ErrMissingNamespaceSuffix = goerrors.New("namespace suffix is not configured", goerrors.CategoryBadInput).
	WithTextCode("missing_namespace_suffix").
	WithCode(goerrors.CodeBadRequest)

// ProviderError carries an opaque provider failure code across the
// identity-provider boundary so the operation layer can classify it.
type ProviderError struct {
	Op   string
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := "provider"
	if e.Op != "" {
		scope = e.Op
	}

	if e.Code != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}

	return fmt.Sprintf("%s failed", scope)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NormalizeCode maps an opaque provider error code to an ErrorKind. Codes are
// accepted with or without the "auth/" namespace some providers prepend.
// Unrecognized codes map to KindUnknown.
func NormalizeCode(code string) ErrorKind {
	code = strings.TrimPrefix(strings.TrimSpace(code), "auth/")

	switch code {
	case "invalid-credential", "wrong-password", "invalid-login-credentials":
		return KindInvalidCredentials
	case "user-not-found":
		return KindAccountNotFound
	case "too-many-requests":
		return KindRateLimited
	case "weak-password":
		return KindWeakSecret
	case "email-already-in-use":
		return KindIdentifierTaken
	case "invalid-email":
		return KindInvalidIdentifier
	default:
		return KindUnknown
	}
}

// Classify recovers the ErrorKind from any error produced by this package.
// A nil error has no kind and returns "".
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		if kind := ErrorKind(rich.TextCode); knownKind(kind) {
			return kind
		}
	}

	var perr *ProviderError
	if goerrors.As(err, &perr) {
		return NormalizeCode(perr.Code)
	}

	return KindUnknown
}

func knownKind(kind ErrorKind) bool {
	switch kind {
	case KindInvalidCredentials, KindAccountNotFound, KindRateLimited,
		KindWeakSecret, KindIdentifierTaken, KindInvalidIdentifier, KindUnknown:
		return true
	}
	return false
}

// classifyProvider converts a raw provider failure into the matching
// sentinel, keeping the original error as source. Nothing past the operation
// boundary ever sees the raw provider error.
func classifyProvider(err error) error {
	if err == nil {
		return nil
	}

	var base *goerrors.Error
	switch Classify(err) {
	case KindInvalidCredentials:
		base = ErrInvalidCredentials
	case KindAccountNotFound:
		base = ErrAccountNotFound
	case KindRateLimited:
		base = ErrRateLimited
	case KindWeakSecret:
		base = ErrWeakSecret
	case KindIdentifierTaken:
		base = ErrIdentifierTaken
	case KindInvalidIdentifier:
		base = ErrInvalidIdentifier
	default:
		base = ErrUnknown
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	clone.Source = err

	return clone
}
