// Package file stores sessions as one JSON file per origin under a config directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cc "github.com/and161185/travelblog/internal/crypto/clientcrypto"
	"github.com/and161185/travelblog/internal/model"
)

const (
	sessionsDir = "sessions"
	saltFile    = "session.salt"
)

// record is the on-disk shape. Exactly one of the token fields or Sealed is set.
type record struct {
	Origin       string    `json:"origin"`
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Sealed       []byte    `json:"sealed,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SessionRepo implements SessionRepository on the local filesystem. Writes go to a temp file
// that is renamed over the target, so the pair is replaced atomically.
type SessionRepo struct {
	dir        string
	passphrase []byte

	mu     sync.Mutex
	master []byte
}

// Option configures a SessionRepo.
type Option func(*SessionRepo)

// WithPassphrase enables sealing of stored tokens with a key derived from passphrase.
func WithPassphrase(p string) Option {
	return func(r *SessionRepo) {
		if p != "" {
			r.passphrase = []byte(p)
		}
	}
}

// NewSessionRepo constructs a repository rooted at dir.
func NewSessionRepo(dir string, opts ...Option) *SessionRepo {
	r := &SessionRepo{dir: dir}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Dir returns the directory holding the per-origin session files.
func (r *SessionRepo) Dir() string { return filepath.Join(r.dir, sessionsDir) }

// Path returns the session file of origin.
func (r *SessionRepo) Path(origin string) string {
	return filepath.Join(r.Dir(), fileName(origin))
}

// fileName maps an origin like "http://127.0.0.1:8080" to "http_127.0.0.1_8080.json".
func fileName(origin string) string {
	s := strings.NewReplacer("://", "_", ":", "_", "/", "_", "\\", "_").Replace(origin)
	if s == "" {
		s = "default"
	}
	return s + ".json"
}

// Load reads the pair of origin; a missing file means no session.
func (r *SessionRepo) Load(_ context.Context, origin string) (model.Tokens, error) {
	b, err := os.ReadFile(r.Path(origin))
	if errors.Is(err, os.ErrNotExist) {
		return model.Tokens{}, nil
	}
	if err != nil {
		return model.Tokens{}, err
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return model.Tokens{}, fmt.Errorf("decode session file: %w", err)
	}
	if rec.Sealed == nil {
		return model.Tokens{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken}, nil
	}

	key, err := r.originKey(origin)
	if err != nil {
		return model.Tokens{}, err
	}
	pt, err := cc.Open(key, []byte(origin), rec.Sealed)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("open sealed session: %w", err)
	}
	var t model.Tokens
	if err := json.Unmarshal(pt, &t); err != nil {
		return model.Tokens{}, fmt.Errorf("decode sealed session: %w", err)
	}
	return t, nil
}

// Save replaces the pair of origin.
func (r *SessionRepo) Save(_ context.Context, origin string, t model.Tokens) error {
	rec := record{Origin: origin, UpdatedAt: time.Now().UTC()}
	if r.passphrase == nil {
		rec.AccessToken, rec.RefreshToken = t.AccessToken, t.RefreshToken
	} else {
		key, err := r.originKey(origin)
		if err != nil {
			return err
		}
		pt, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		if rec.Sealed, err = cc.Seal(key, []byte(origin), pt); err != nil {
			return fmt.Errorf("seal session: %w", err)
		}
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(r.Path(origin), b)
}

// Delete removes the session file of origin.
func (r *SessionRepo) Delete(_ context.Context, origin string) error {
	err := os.Remove(r.Path(origin))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// originKey derives the sealing key of origin. The Argon2id master key is derived once per
// repository; the salt is created on first use and kept next to the session files.
func (r *SessionRepo) originKey(origin string) ([]byte, error) {
	if r.passphrase == nil {
		return nil, errors.New("sealed session found but no passphrase configured")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.master == nil {
		salt, err := r.loadSalt()
		if err != nil {
			return nil, err
		}
		r.master = cc.DeriveKey(r.passphrase, salt)
	}
	return cc.DeriveOriginKey(r.master, origin)
}

func (r *SessionRepo) loadSalt() ([]byte, error) {
	p := filepath.Join(r.dir, saltFile)
	salt, err := os.ReadFile(p)
	if err == nil && len(salt) == cc.SaltLen {
		return salt, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if salt, err = cc.Rand(cc.SaltLen); err != nil {
		return nil, err
	}
	if err := writeAtomic(p, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o600); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
