package keystore

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// PrivateKey is the signing half of a key pair. The material can only be
// used through Sign and is never handed out.
type PrivateKey struct {
	key jwk.Key
}

// Sign signs tok with the private key, adding hdrs to the protected header.
func (p *PrivateKey) Sign(tok jwt.Token, alg jwa.SignatureAlgorithm, hdrs jws.Headers) ([]byte, error) {
	return jwt.Sign(tok, jwt.WithKey(alg, p.key, jws.WithProtectedHeaders(hdrs)))
}

// PublicKey is the publishable half of a key pair.
type PublicKey struct {
	key jwk.Key
}

// RSA exports a new copy of the RSA public key.
func (p *PublicKey) RSA() (*rsa.PublicKey, error) {
	if p.key == nil {
		return nil, errors.New("public key is not set")
	}
	var raw any
	if err := jwk.Export(p.key, &raw); err != nil {
		return nil, fmt.Errorf("failed to export public jwk: %w", err)
	}
	pub, ok := raw.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type %T", raw)
	}
	return pub, nil
}

// KeyEntry is a generated key pair. Entries are never mutated after creation.
type KeyEntry struct {
	ID        string
	Private   *PrivateKey
	Public    *PublicKey
	ExpiresAt time.Time
}

// NewKeyEntry wraps an RSA private key into an entry identified by id.
func NewKeyEntry(id string, priv *rsa.PrivateKey, expiresAt time.Time) (*KeyEntry, error) {
	private, err := jwk.Import(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to convert rsa key to jwk: %w", err)
	}
	if err := private.Set(jwk.KeyIDKey, id); err != nil {
		return nil, fmt.Errorf("failed to set key ID on jwk: %w", err)
	}
	public, err := private.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key from jwk: %w", err)
	}
	return &KeyEntry{
		ID:        id,
		Private:   &PrivateKey{key: private},
		Public:    &PublicKey{key: public},
		ExpiresAt: expiresAt,
	}, nil
}

// Expired reports whether the entry is expired at now. An entry is expired
// exactly at its expiry instant.
func (k *KeyEntry) Expired(now time.Time) bool {
	return !k.ExpiresAt.After(now)
}
