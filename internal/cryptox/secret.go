// Package cryptox implements the gateway's protocol cryptography: the radix
// text encoding, password-derived signing keys and request signatures, the
// recovery nonce/email commitment, access-code hashing and the client side
// of RSA-OAEP parameter encryption.
package cryptox

import (
	"database/sql/driver"
	"fmt"
	"log/slog"
)

const redacted = "[REDACTED]"

// Secret holds sensitive text (signing keys, pending passwords). It never
// prints, logs or serializes its value; Reveal is the only way out.
type Secret struct {
	v string
}

func NewSecret(v string) Secret {
	return Secret{v: v}
}

// Reveal returns the secret value.
func (s Secret) Reveal() string { return s.v }

func (s Secret) IsZero() bool { return s.v == "" }

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

func (s Secret) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(redacted))
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Value lets repositories pass a Secret as a query argument.
func (s Secret) Value() (driver.Value, error) {
	return s.v, nil
}

// Scan reads a text column into the secret.
func (s *Secret) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		s.v = ""
	case string:
		s.v = v
	case []byte:
		s.v = string(v)
	default:
		return fmt.Errorf("cryptox: cannot scan %T into Secret", src)
	}
	return nil
}
