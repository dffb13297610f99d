// Package auth issues the short-lived assertion the relay attaches to
// forwarded requests, so the core service can trust who was authenticated
// without re-checking signatures.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const assertionIssuer = "authgate"

var (
	ErrInvalidAssertion = errors.New("invalid assertion")
	ErrAssertionExpired = errors.New("assertion expired")
)

// Claims carries the authenticated user. Subject is the decimal user id.
type Claims struct {
	jwt.RegisteredClaims
	Login string `json:"login"`
}

func GenerateAssertion(userID int64, login string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    assertionIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Login: login,
	})

	return token.SignedString(secretKey)
}

// ParseAssertion validates tokenString and returns the user id and login.
func ParseAssertion(tokenString string, secretKey []byte) (int64, string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(assertionIssuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, "", ErrAssertionExpired
		}
		return 0, "", errors.Join(ErrInvalidAssertion, err)
	}

	if !token.Valid {
		return 0, "", ErrInvalidAssertion
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, "", errors.Join(ErrInvalidAssertion, err)
	}

	return id, claims.Login, nil
}
