package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"strconv"
)

// NonceEmailCommitment binds a recovery nonce to the account email:
// EncodeText(SHA256(decimal(nonce) ∥ email)).
func NonceEmailCommitment(nonce int64, email string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(nonce, 10) + email))
	return EncodeText(sum[:])
}

// VerifyNonceEmail checks presented against the commitment for (nonce, email).
func VerifyNonceEmail(nonce int64, email, presented string) bool {
	expected := NonceEmailCommitment(nonce, email)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
