// Package keystore owns the deployment's RSA key pair. A KeyStore is built
// once at startup and is immutable afterwards, so handlers share it without
// locking.
package keystore

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// MinKeyBits is the smallest modulus accepted for the deployment key.
const MinKeyBits = 2048

var (
	ErrInvalidKey = errors.New("invalid RSA private key")
	ErrWeakKey    = errors.New("RSA key is shorter than 2048 bits")
)

type KeyStore struct {
	priv      *rsa.PrivateKey
	publicPEM []byte
}

// New parses a PEM private key: PKCS#1 ("RSA PRIVATE KEY") or PKCS#8
// ("PRIVATE KEY").
func New(privatePEM []byte) (*KeyStore, error) {
	priv, err := parsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}
	return FromKey(priv)
}

// FromKey wraps an already parsed key.
func FromKey(priv *rsa.PrivateKey) (*KeyStore, error) {
	if priv == nil {
		return nil, ErrInvalidKey
	}
	if priv.N.BitLen() < MinKeyBits {
		return nil, ErrWeakKey
	}
	if err := priv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	priv.Precompute()

	pub := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey),
	})
	return &KeyStore{priv: priv, publicPEM: pub}, nil
}

// Load reads key material from src and builds the KeyStore.
func Load(ctx context.Context, src Source) (*KeyStore, error) {
	data, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load key from %s: %w", src, err)
	}
	ks, err := New(data)
	if err != nil {
		return nil, fmt.Errorf("key from %s: %w", src, err)
	}
	return ks, nil
}

// Public returns the PKCS#1 PEM of the public key.
func (k *KeyStore) Public() []byte {
	out := make([]byte, len(k.publicPEM))
	copy(out, k.publicPEM)
	return out
}

func (k *KeyStore) PublicKey() *rsa.PublicKey {
	return &k.priv.PublicKey
}

// Decrypt reverses RSA-OAEP with SHA-256 and an empty label.
func (k *KeyStore) Decrypt(ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), nil, k.priv, ciphertext, nil)
}

// Generate creates a fresh private key.
func Generate(bits int) (*rsa.PrivateKey, error) {
	if bits < MinKeyBits {
		return nil, ErrWeakKey
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

// EncodePrivateKey renders priv as a PKCS#1 PEM block.
func EncodePrivateKey(priv *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return priv, nil
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		priv, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("%w: unexpected block %q", ErrInvalidKey, block.Type)
	}
}
