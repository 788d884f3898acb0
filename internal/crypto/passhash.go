// Package crypto hashes and verifies account passwords with Argon2id.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"
)

// Params tunes Argon2id. Memory is in KiB.
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams are sized for a real server.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// ErrEmptyPassword is returned when there is nothing to hash.
var ErrEmptyPassword = errors.New("empty password")

// PasswordHash is a salted Argon2id digest together with the params that produced it.
type PasswordHash struct {
	Params Params
	Salt   []byte
	Key    []byte
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassword derives the Argon2id key of password under salt.
func HashPassword(password, salt []byte, p Params) []byte {
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// NewPasswordHash hashes password with a fresh random salt.
func NewPasswordHash(password string, p Params) (PasswordHash, error) {
	if password == "" {
		return PasswordHash{}, ErrEmptyPassword
	}
	salt, err := RandBytes(p.SaltLen)
	if err != nil {
		return PasswordHash{}, err
	}
	return PasswordHash{Params: p, Salt: salt, Key: HashPassword([]byte(password), salt, p)}, nil
}

// Verify reports whether password matches h in constant time.
func (h PasswordHash) Verify(password string) bool {
	if len(h.Key) == 0 {
		return false
	}
	got := HashPassword([]byte(password), h.Salt, h.Params)
	return subtle.ConstantTimeCompare(got, h.Key) == 1
}
