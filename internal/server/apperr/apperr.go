// Package apperr defines the gateway's client-facing failure taxonomy. Each
// Kind has a stable numeric code, a default HTTP status and a message that
// is safe to show to callers; the underlying cause is kept for logs only.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind uint32

const (
	KindDatabaseConnection       Kind = 1
	KindDatabase                 Kind = 2
	KindLogInFailed              Kind = 3
	KindRegisterFailed           Kind = 4
	KindUserNotFound             Kind = 5
	KindMailInit                 Kind = 9
	KindMailSend                 Kind = 10
	KindWrongNonce               Kind = 11
	KindEncodingDecode           Kind = 12
	KindRsaDecode                Kind = 13
	KindWrongTextEncoding        Kind = 14
	KindWrongAccessCode          Kind = 15
	KindWrongRequest             Kind = 16
	KindUnsupportedHTTPMethod    Kind = 17
	KindSendRequestToCoreService Kind = 18
	KindWrongSignature           Kind = 19
)

type kindInfo struct {
	name   string
	status int
}

var kinds = map[Kind]kindInfo{
	KindDatabaseConnection:       {"DatabaseConnection", http.StatusInternalServerError},
	KindDatabase:                 {"Database", http.StatusInternalServerError},
	KindLogInFailed:              {"LogInFailed", http.StatusBadRequest},
	KindRegisterFailed:           {"RegisterFailed", http.StatusBadRequest},
	KindUserNotFound:             {"UserNotFound", http.StatusBadRequest},
	KindMailInit:                 {"MailInit", http.StatusInternalServerError},
	KindMailSend:                 {"MailSend", http.StatusInternalServerError},
	KindWrongNonce:               {"WrongNonce", http.StatusBadRequest},
	KindEncodingDecode:           {"EncodingDecode", http.StatusBadRequest},
	KindRsaDecode:                {"RsaDecode", http.StatusBadRequest},
	KindWrongTextEncoding:        {"WrongTextEncoding", http.StatusBadRequest},
	KindWrongAccessCode:          {"WrongAccessCode", http.StatusBadRequest},
	KindWrongRequest:             {"WrongRequest", http.StatusNotFound},
	KindUnsupportedHTTPMethod:    {"UnsupportedHttpMethod", http.StatusBadRequest},
	KindSendRequestToCoreService: {"SendRequestToCoreService", http.StatusInternalServerError},
	KindWrongSignature:           {"WrongSignature", http.StatusBadRequest},
}

func (k Kind) Code() uint32 { return uint32(k) }

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Status is the default HTTP status for k.
func (k Kind) Status() int {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Error is a classified failure. Param names the offending login, email or
// request field where the message mentions one.
type Error struct {
	Kind   Kind
	Param  string
	Status int
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message() + ": " + e.Cause.Error()
	}
	return e.Message()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches two *Error values of the same kind, so callers can write
// errors.Is(err, apperr.New(apperr.KindWrongNonce)).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus is the explicit status, or the kind default.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Kind.Status()
}

// Message is the caller-facing text. It never includes the cause.
func (e *Error) Message() string {
	switch e.Kind {
	case KindDatabaseConnection:
		return "Failed connect to database"
	case KindDatabase:
		return "Database error"
	case KindLogInFailed:
		return "Failed to log in"
	case KindRegisterFailed:
		return "Failed to register"
	case KindUserNotFound:
		return fmt.Sprintf("Couldn't find user with login/email %s", e.Param)
	case KindMailInit:
		return "Failed to initialize mail client"
	case KindMailSend:
		return "Failed to send e-mail"
	case KindWrongNonce:
		return "Wrong nonce"
	case KindEncodingDecode:
		return fmt.Sprintf("Failed to decode %s from base58", e.Param)
	case KindRsaDecode:
		return fmt.Sprintf("Failed to decode %s from rsa", e.Param)
	case KindWrongTextEncoding:
		return fmt.Sprintf("Wrong encoding for %s: expected UTF-8", e.Param)
	case KindWrongAccessCode:
		return "Wrong access code"
	case KindWrongRequest:
		return "Wrong request"
	case KindUnsupportedHTTPMethod:
		return "Unsupported HTTP method"
	case KindSendRequestToCoreService:
		return "Failed to send request to core service"
	case KindWrongSignature:
		return "Wrong signature"
	default:
		return "Internal error"
	}
}

func New(k Kind) *Error { return &Error{Kind: k} }

func Wrap(k Kind, cause error) *Error { return &Error{Kind: k, Cause: cause} }

// WithStatus returns a copy of e answered with status instead of the default.
func (e *Error) WithStatus(status int) *Error {
	c := *e
	c.Status = status
	return &c
}

func UserNotFound(login string) *Error {
	return &Error{Kind: KindUserNotFound, Param: login}
}

func EncodingDecode(field string, cause error) *Error {
	return &Error{Kind: KindEncodingDecode, Param: field, Cause: cause}
}

func RsaDecode(field string, cause error) *Error {
	return &Error{Kind: KindRsaDecode, Param: field, Cause: cause}
}

func WrongTextEncoding(field string) *Error {
	return &Error{Kind: KindWrongTextEncoding, Param: field}
}

func Database(cause error) *Error { return Wrap(KindDatabase, cause) }

// As extracts the *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// From classifies any error: *Error values pass through, everything else is
// reported as a database failure with the original error as cause.
func From(err error) *Error {
	if e, ok := As(err); ok {
		return e
	}
	return Database(err)
}

// HasKind reports whether err is an *Error of kind k.
func HasKind(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == k
}
