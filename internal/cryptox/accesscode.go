package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/dmitrijs2005/authgate/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	accessCodeScheme  = "argon2id"
	accessCodeSaltLen = 16
	accessCodeKeyLen  = 32
)

var ErrInvalidCodeHash = errors.New("invalid access code hash")

func deriveCodeKey(code string, salt []byte) []byte {
	return argon2.IDKey([]byte(code), salt, 1, 64*1024, 4, accessCodeKeyLen)
}

// HashAccessCode returns "argon2id$<salt>$<key>" for storage.
func HashAccessCode(code string) string {
	salt := common.GenerateRandByteArray(accessCodeSaltLen)
	key := deriveCodeKey(code, salt)
	enc := base64.RawStdEncoding
	return accessCodeScheme + "$" + enc.EncodeToString(salt) + "$" + enc.EncodeToString(key)
}

// VerifyAccessCode reports whether code matches a value from HashAccessCode.
func VerifyAccessCode(code, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != accessCodeScheme {
		return false, ErrInvalidCodeHash
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[1])
	if err != nil {
		return false, ErrInvalidCodeHash
	}
	want, err := enc.DecodeString(parts[2])
	if err != nil || len(want) != accessCodeKeyLen {
		return false, ErrInvalidCodeHash
	}

	got := deriveCodeKey(code, salt)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
