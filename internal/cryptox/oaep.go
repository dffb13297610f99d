package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

var ErrInvalidPublicKey = errors.New("invalid RSA public key")

// ParsePublicKeyPEM reads a PKCS#1 ("RSA PUBLIC KEY") or PKIX ("PUBLIC KEY")
// PEM block.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPublicKey
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		return pub, nil
	case "PUBLIC KEY":
		k, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		pub, ok := k.(*rsa.PublicKey)
		if !ok {
			return nil, ErrInvalidPublicKey
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unexpected block %q", ErrInvalidPublicKey, block.Type)
	}
}

// EncryptParameter encrypts plaintext for the gateway with RSA-OAEP/SHA-256
// and returns it text-encoded, ready for a request body.
func EncryptParameter(pub *rsa.PublicKey, plaintext string) (string, error) {
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), nil)
	if err != nil {
		return "", err
	}
	return EncodeText(ct), nil
}
