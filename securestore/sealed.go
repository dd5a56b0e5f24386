package securestore

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealVersion = 1
	saltLength  = 16
)

// KDFParams tunes the Argon2id derivation of the sealing key.
type KDFParams struct {
	Iterations  uint32
	MemoryKiB   uint32
	Parallelism uint8
}

// DefaultKDFParams is sized for an interactive unlock on a phone-class device.
func DefaultKDFParams() KDFParams {
	return KDFParams{Iterations: 2, MemoryKiB: 19 * 1024, Parallelism: 1}
}

var _ Storage = (*Sealed)(nil)

// Sealed encrypts every value with XChaCha20-Poly1305 before handing it to the
// inner storage. A sealed value is version | salt | nonce | ciphertext, and the
// storage key is bound in as additional data so values cannot be swapped
// between keys.
type Sealed struct {
	inner      Storage
	passphrase []byte
	params     KDFParams

	mu       sync.Mutex
	lastSalt string
	lastKey  []byte
}

type SealedOption func(*Sealed)

// WithKDFParams overrides the key derivation cost (tests use cheap parameters).
func WithKDFParams(params KDFParams) SealedOption {
	return func(s *Sealed) {
		s.params = params
	}
}

// NewSealed wraps inner with encryption keyed by passphrase.
func NewSealed(inner Storage, passphrase string, options ...SealedOption) (*Sealed, error) {
	if inner == nil {
		return nil, errors.New("[NewSealed] inner storage is required")
	}
	if passphrase == "" {
		return nil, errors.New("[NewSealed] passphrase is required")
	}
	s := &Sealed{
		inner:      inner,
		passphrase: []byte(passphrase),
		params:     DefaultKDFParams(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.open(key, sealed)
}

func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *Sealed) seal(key string, plain []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Wrap(err, "[Sealed.seal] salt")
	}
	aead, err := chacha20poly1305.NewX(s.derive(salt))
	if err != nil {
		return nil, errors.Wrap(err, "[Sealed.seal] cipher")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "[Sealed.seal] nonce")
	}

	out := make([]byte, 0, 1+len(salt)+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, sealVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, []byte(key)), nil
}

func (s *Sealed) open(key string, sealed []byte) ([]byte, error) {
	headerLen := 1 + saltLength + chacha20poly1305.NonceSizeX
	if len(sealed) < headerLen || sealed[0] != sealVersion {
		return nil, fmt.Errorf("%w: malformed header", ErrSealed)
	}
	salt := sealed[1 : 1+saltLength]
	nonce := sealed[1+saltLength : headerLen]

	aead, err := chacha20poly1305.NewX(s.derive(salt))
	if err != nil {
		return nil, errors.Wrap(err, "[Sealed.open] cipher")
	}
	plain, err := aead.Open(nil, nonce, sealed[headerLen:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSealed, err.Error())
	}
	return plain, nil
}

// derive caches the key for the most recent salt; a session record is read far
// more often than it is written.
func (s *Sealed) derive(salt []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastKey != nil && s.lastSalt == string(salt) {
		return s.lastKey
	}
	key := argon2.IDKey(s.passphrase, salt, s.params.Iterations, s.params.MemoryKiB, s.params.Parallelism, chacha20poly1305.KeySize)
	s.lastSalt = string(salt)
	s.lastKey = key
	return key
}
