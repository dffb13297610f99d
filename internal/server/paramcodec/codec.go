// Package paramcodec turns an encrypted request parameter back into text:
// radix decode, RSA-OAEP decrypt, UTF-8 check. Each step fails with its own
// error kind naming the field.
package paramcodec

import (
	"unicode/utf8"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/cryptox"
	"github.com/dmitrijs2005/authgate/internal/server/apperr"
)

// Decrypter is satisfied by *keystore.KeyStore.
type Decrypter interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}

type Codec struct {
	d Decrypter
}

func New(d Decrypter) *Codec {
	return &Codec{d: d}
}

// Decode returns the plaintext of encoded. Errors are *apperr.Error of kind
// EncodingDecode, RsaDecode or WrongTextEncoding.
func (c *Codec) Decode(encoded, field string) (string, error) {
	raw, err := cryptox.DecodeText(encoded)
	if err != nil {
		return "", apperr.EncodingDecode(field, err)
	}

	plain, err := c.d.Decrypt(raw)
	if err != nil {
		return "", apperr.RsaDecode(field, err)
	}
	defer common.WipeByteArray(plain)

	if !utf8.Valid(plain) {
		return "", apperr.WrongTextEncoding(field)
	}
	return string(plain), nil
}

// DecodeSecret is Decode for values that must not reach logs.
func (c *Codec) DecodeSecret(encoded, field string) (cryptox.Secret, error) {
	s, err := c.Decode(encoded, field)
	if err != nil {
		return cryptox.Secret{}, err
	}
	return cryptox.NewSecret(s), nil
}
