package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"strconv"
)

// DeriveSigningKey turns a password into the key stored for its owner:
// EncodeText(SHA256(password)).
func DeriveSigningKey(password string) Secret {
	sum := sha256.Sum256([]byte(password))
	return NewSecret(EncodeText(sum[:]))
}

// ComputeSignature returns EncodeText(SHA256(login ∥ decimal(nonce) ∥ key)).
func ComputeSignature(login string, nonce int64, key Secret) string {
	h := sha256.New()
	h.Write([]byte(login))
	h.Write([]byte(strconv.FormatInt(nonce, 10)))
	h.Write([]byte(key.Reveal()))
	return EncodeText(h.Sum(nil))
}

// VerifySignature compares presented with the expected signature in constant
// time.
func VerifySignature(login string, nonce int64, key Secret, presented string) bool {
	expected := ComputeSignature(login, nonce, key)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
