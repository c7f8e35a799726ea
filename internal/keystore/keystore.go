package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"

	"github.com/matheuscscp/jwks-fixture/internal/config"
)

const (
	defaultKeySize    = 2048
	defaultValidTTL   = time.Hour
	defaultExpiredTTL = -time.Hour
)

// ErrKeyGeneration marks failures of the underlying key generation.
// The store cannot recover from them.
var ErrKeyGeneration = errors.New("key generation failed")

// Validity is the class a key falls in at a given instant.
type Validity int

const (
	Valid Validity = iota
	Expired
)

func (v Validity) String() string {
	if v == Expired {
		return "expired"
	}
	return "valid"
}

// KeyStore owns every key generated during the process lifetime. Entries
// are only ever appended. All operations are serialized by a single lock,
// and SelectSigningKey holds it across its check-then-generate sequence, so
// concurrent callers on an empty class never generate more than one key.
type KeyStore struct {
	keySize    int
	validTTL   time.Duration
	expiredTTL time.Duration

	entries []*KeyEntry
	ids     map[string]struct{}
	mu      sync.Mutex

	metrics *metrics

	nowFunc     func() time.Time
	generateKey func(bits int) (*rsa.PrivateKey, error)
	generateID  func() string
}

func New(conf config.KeysConfig) *KeyStore {
	ks := &KeyStore{
		keySize:    conf.Size,
		validTTL:   conf.ValidTTL,
		expiredTTL: conf.ExpiredTTL,
		ids:        make(map[string]struct{}),
		metrics:    newMetrics(),
	}
	if ks.keySize == 0 {
		ks.keySize = defaultKeySize
	}
	if ks.validTTL <= 0 {
		ks.validTTL = defaultValidTTL
	}
	if ks.expiredTTL >= 0 {
		ks.expiredTTL = defaultExpiredTTL
	}
	return ks
}

// GenerateKey creates a new key pair expiring ttl from now and appends it.
// A non-positive ttl produces an entry that is already expired.
func (s *KeyStore) GenerateKey(ttl time.Duration) (*KeyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generateLocked(ttl)
}

// ListValid returns the entries not yet expired, in insertion order.
func (s *KeyStore) ListValid() []*KeyEntry {
	return s.list(Valid)
}

// ListExpired returns the expired entries, in insertion order.
func (s *KeyStore) ListExpired() []*KeyEntry {
	return s.list(Expired)
}

// SelectSigningKey returns the earliest inserted entry of the requested class,
// generating one under the same lock when the class is empty. Repeated calls
// return the same entry for as long as it stays in its class.
func (s *KeyStore) SelectSigningKey(wantExpired bool) (*KeyEntry, error) {
	want, ttl := Valid, s.validTTL
	if wantExpired {
		want, ttl = Expired, s.expiredTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.firstLocked(want, s.now()); e != nil {
		return e, nil
	}
	return s.generateLocked(ttl)
}

func (s *KeyStore) list(want Validity) []*KeyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	keys := []*KeyEntry{}
	for _, e := range s.entries {
		if validityOf(e, now) == want {
			keys = append(keys, e)
		}
	}
	return keys
}

func (s *KeyStore) firstLocked(want Validity, now time.Time) *KeyEntry {
	for _, e := range s.entries {
		if validityOf(e, now) == want {
			return e
		}
	}
	return nil
}

func (s *KeyStore) generateLocked(ttl time.Duration) (*KeyEntry, error) {
	generateKey := generateRSAKey
	if s.generateKey != nil {
		generateKey = s.generateKey
	}
	priv, err := generateKey(s.keySize)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate rsa key: %w", ErrKeyGeneration, err)
	}

	id := s.newIDLocked()
	now := s.now()
	entry, err := NewKeyEntry(id, priv, now.Add(ttl))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyGeneration, err)
	}

	s.entries = append(s.entries, entry)
	s.ids[id] = struct{}{}

	validity := validityOf(entry, now)
	s.metrics.generated.WithLabelValues(validity.String()).Inc()

	logData := logrus.Fields{
		jwk.KeyIDKey: id,
		"expiresAt":  entry.ExpiresAt,
		"expired":    validity == Expired,
	}
	logrus.WithField("key", logData).Info("key generated")

	return entry, nil
}

func (s *KeyStore) newIDLocked() string {
	generateID := uuid.NewString
	if s.generateID != nil {
		generateID = s.generateID
	}
	for {
		id := generateID()
		if _, ok := s.ids[id]; !ok {
			return id
		}
	}
}

func (s *KeyStore) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now()
}

func validityOf(e *KeyEntry, now time.Time) Validity {
	if e.Expired(now) {
		return Expired
	}
	return Valid
}

func generateRSAKey(bits int) (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, bits)
}
