package cryptox

import (
	"errors"

	"github.com/mr-tron/base58"
)

var ErrEmptyText = errors.New("empty encoded value")

// EncodeText is the single radix encoding used for binary values on the
// wire: base58 with the Bitcoin alphabet.
func EncodeText(b []byte) string {
	return base58.Encode(b)
}

// DecodeText reverses EncodeText. Empty input is rejected.
func DecodeText(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrEmptyText
	}
	return base58.Decode(s)
}
