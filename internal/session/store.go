// Package session holds the bearer-token session of the client.
//
// A Store is an explicit object handed to the request client and to the auth flows. It has no
// read cache: every read goes to the backing repository, so the repository is the single source
// of truth and is shared by every process pointed at the same origin. Views that must react to
// login and logout register with Subscribe.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/travelblog/internal/model"
	"github.com/and161185/travelblog/internal/repository"
)

// EventKind tells subscribers what happened to the session.
type EventKind int

const (
	// EventLogin means a token pair was stored (login, register or a new session elsewhere).
	EventLogin EventKind = iota + 1
	// EventLogout means the token pair was removed.
	EventLogout
)

func (k EventKind) String() string {
	switch k {
	case EventLogin:
		return "login"
	case EventLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after the change is persisted.
type Event struct {
	Kind   EventKind
	Origin string
}

// Store reads and writes the token pair of one origin.
type Store struct {
	repo   repository.SessionRepository
	origin string
	log    *zap.Logger

	// wmu serializes writers so a set and a clear never interleave.
	wmu sync.Mutex

	smu    sync.Mutex
	subs   map[int]func(Event)
	nextID int
	seen   model.Tokens
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New constructs a Store for origin backed by repo.
func New(repo repository.SessionRepository, origin string, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		origin: origin,
		log:    zap.NewNop(),
		subs:   make(map[int]func(Event)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Origin reduces an API base URL to scheme://host[:port], the scope of a session.
func Origin(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q must be absolute", baseURL)
	}
	scheme, host := strings.ToLower(u.Scheme), strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && port != defaultPorts[scheme] {
		host += ":" + port
	}
	return scheme + "://" + host, nil
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// OriginName returns the origin the store is scoped to.
func (s *Store) OriginName() string { return s.origin }

// Tokens loads the stored pair.
func (s *Store) Tokens(ctx context.Context) (model.Tokens, error) {
	return s.repo.Load(ctx, s.origin)
}

// Token returns the access token, or "" when absent. A failing backend reads as unauthenticated.
func (s *Store) Token(ctx context.Context) string {
	t, err := s.Tokens(ctx)
	if err != nil {
		s.log.Warn("session read failed", zap.String("origin", s.origin), zap.Error(err))
		return ""
	}
	return t.AccessToken
}

// RefreshToken returns the refresh token, or "" when absent.
func (s *Store) RefreshToken(ctx context.Context) string {
	t, err := s.Tokens(ctx)
	if err != nil {
		s.log.Warn("session read failed", zap.String("origin", s.origin), zap.Error(err))
		return ""
	}
	return t.RefreshToken
}

// Authenticated reports whether an access token is stored.
func (s *Store) Authenticated(ctx context.Context) bool { return s.Token(ctx) != "" }

// SetSession stores both tokens as one update and notifies subscribers.
func (s *Store) SetSession(ctx context.Context, access, refresh string) error {
	if access == "" {
		return errors.New("empty access token")
	}
	t := model.Tokens{AccessToken: access, RefreshToken: refresh}

	s.wmu.Lock()
	err := s.repo.Save(ctx, s.origin, t)
	s.wmu.Unlock()
	if err != nil {
		return err
	}
	s.log.Debug("session stored", zap.String("origin", s.origin))
	s.publish(t, EventLogin)
	return nil
}

// ClearSession removes both tokens and notifies subscribers.
func (s *Store) ClearSession(ctx context.Context) error {
	s.wmu.Lock()
	err := s.repo.Delete(ctx, s.origin)
	s.wmu.Unlock()
	if err != nil {
		return err
	}
	s.log.Debug("session cleared", zap.String("origin", s.origin))
	s.publish(model.Tokens{}, EventLogout)
	return nil
}

// Expiry returns the exp claim of the stored access token. The token is parsed without
// signature verification: the client cannot verify it and only uses exp for display and warnings.
func (s *Store) Expiry(ctx context.Context) (time.Time, bool) {
	return TokenExpiry(s.Token(ctx))
}

// TokenExpiry extracts the exp claim of a JWT without verifying it.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Subscribe registers fn for session events and returns a function that removes it.
// fn runs on the goroutine that made the change and must not block.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.smu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.smu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.smu.Lock()
			delete(s.subs, id)
			s.smu.Unlock()
		})
	}
}

// publish records t as the last observed pair and fans kind out to subscribers.
func (s *Store) publish(t model.Tokens, kind EventKind) { s.notify(t, kind, false) }

// observe publishes only when t differs from the last observed pair. It is used for changes
// made outside this Store, where the same write may be seen more than once.
func (s *Store) observe(t model.Tokens) {
	kind := EventLogin
	if t.Empty() {
		kind = EventLogout
	}
	s.notify(t, kind, true)
}

func (s *Store) notify(t model.Tokens, kind EventKind, onlyChanged bool) {
	s.smu.Lock()
	if onlyChanged && s.seen == t {
		s.smu.Unlock()
		return
	}
	s.seen = t
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.smu.Unlock()

	ev := Event{Kind: kind, Origin: s.origin}
	for _, fn := range fns {
		fn(ev)
	}
}

// prime records the current pair without notifying anyone.
func (s *Store) prime(ctx context.Context) {
	t, err := s.Tokens(ctx)
	if err != nil {
		return
	}
	s.smu.Lock()
	s.seen = t
	s.smu.Unlock()
}
