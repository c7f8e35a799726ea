package jwks

import (
	"crypto/rsa"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/matheuscscp/jwks-fixture/internal/constants"
)

// ToPublicKeyDocument encodes pub as a signing JWK identified by kid. Every
// call returns a new key, so the result can be modified by the caller.
func ToPublicKeyDocument(pub *rsa.PublicKey, kid string) (jwk.Key, error) {
	key, err := jwk.Import(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to convert rsa public key to jwk: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, fmt.Errorf("failed to set key ID on jwk: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, constants.KeyUse); err != nil {
		return nil, fmt.Errorf("failed to set key usage on jwk: %w", err)
	}
	return key, nil
}

// NewSet is the discovery document served at the JWKS endpoint. The keys
// field is always an array.
func NewSet(keys []jwk.Key) map[string]any {
	if keys == nil {
		keys = []jwk.Key{}
	}
	return map[string]any{"keys": keys}
}
