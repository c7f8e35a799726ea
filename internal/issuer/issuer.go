package issuer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/sirupsen/logrus"

	"github.com/matheuscscp/jwks-fixture/internal/config"
	"github.com/matheuscscp/jwks-fixture/internal/constants"
	"github.com/matheuscscp/jwks-fixture/internal/jwks"
	"github.com/matheuscscp/jwks-fixture/internal/keystore"
)

func Algorithm() jwa.SignatureAlgorithm { return jwa.RS256() }

type Issuer interface {
	// ListPublishableKeys returns the JWKs of all currently valid keys in
	// insertion order. An empty result is not an error.
	ListPublishableKeys() ([]jwk.Key, error)
	// IssueToken signs a token with a valid key, or with an expired one and
	// an exp in the past when wantExpired is set.
	IssueToken(wantExpired bool) (string, error)
}

type keySource interface {
	ListValid() []*keystore.KeyEntry
	SelectSigningKey(wantExpired bool) (*keystore.KeyEntry, error)
}

type tokenIssuer struct {
	keySource
	subject         string
	expiredTokenAge time.Duration
	nowFunc         func() time.Time
}

func New(ks *keystore.KeyStore, conf config.TokensConfig) Issuer {
	return newTokenIssuer(ks, conf, time.Now)
}

func newTokenIssuer(ks keySource, conf config.TokensConfig, nowFunc func() time.Time) *tokenIssuer {
	t := &tokenIssuer{
		keySource:       ks,
		subject:         conf.Subject,
		expiredTokenAge: conf.ExpiredTokenAge,
		nowFunc:         nowFunc,
	}
	if t.subject == "" {
		t.subject = constants.TokenSubject
	}
	if t.expiredTokenAge <= 0 {
		t.expiredTokenAge = 24 * time.Hour
	}
	return t
}

func (t *tokenIssuer) ListPublishableKeys() ([]jwk.Key, error) {
	valid := t.ListValid()
	keys := make([]jwk.Key, 0, len(valid))
	for _, e := range valid {
		pub, err := e.Public.RSA()
		if err != nil {
			return nil, fmt.Errorf("failed to export public key '%s': %w", e.ID, err)
		}
		key, err := jwks.ToPublicKeyDocument(pub, e.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to encode public key '%s': %w", e.ID, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (t *tokenIssuer) IssueToken(wantExpired bool) (string, error) {
	key, err := t.SelectSigningKey(wantExpired)
	if err != nil {
		return "", fmt.Errorf("failed to select signing key: %w", err)
	}

	now := t.nowFunc()
	iat := now
	exp := key.ExpiresAt
	if wantExpired {
		// Always in the past, regardless of the selected key's own expiry.
		exp = now.Add(-t.expiredTokenAge)
	}

	tok, err := jwt.NewBuilder().
		Subject(t.subject).
		IssuedAt(iat).
		Expiration(exp).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	hdrs := jws.NewHeaders()
	if err := hdrs.Set(jws.KeyIDKey, key.ID); err != nil {
		return "", fmt.Errorf("failed to set key ID header: %w", err)
	}

	b, err := key.Private.Sign(tok, Algorithm(), hdrs)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	signedJWT := string(b)

	// Log the token issuance.
	b, _ = json.Marshal(tok)
	var claims map[string]any
	_ = json.Unmarshal(b, &claims)
	logData := logrus.Fields{
		jwk.KeyIDKey: key.ID,
		"expired":    wantExpired,
		"claims":     claims,
	}
	logrus.WithField("token", logData).Info("token issued")

	return signedJWT, nil
}
