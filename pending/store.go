// Package pending holds pass requests behind opaque, single-use,
// time-limited tokens, for clients that cannot consume a direct binary
// response and instead complete a two-step download.
package pending

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrNotFound indicates the token does not exist: never issued,
	// already consumed, or swept after expiry.
	ErrNotFound = errors.New("pending pass not found")

	// ErrExpired indicates the token exists but its time-to-live has
	// elapsed. The entry is removed on this observation.
	ErrExpired = errors.New("pending pass expired")
)

// DefaultTTL is how long a prepared request stays retrievable.
const DefaultTTL = 5 * time.Minute

// Store is a lock-guarded map from token to a pending value. An entry is
// created by Put and leaves the store exactly once: through a successful
// Consume, an expired Consume, or the opportunistic sweep, whichever
// comes first.
type Store[T any] struct {
	ttl  time.Duration
	now  func() time.Time
	rand io.Reader

	mu      sync.Mutex
	entries map[string]entry[T]
}

type entry[T any] struct {
	value   T
	created time.Time
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithClock replaces the time source, for TTL tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Store[T]) { s.now = now }
}

// WithRandReader replaces the token randomness source.
func WithRandReader[T any](r io.Reader) Option[T] {
	return func(s *Store[T]) { s.rand = r }
}

// NewStore creates a Store with the given time-to-live. A non-positive ttl
// falls back to DefaultTTL.
func NewStore[T any](ttl time.Duration, opts ...Option[T]) *Store[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store[T]{
		ttl:     ttl,
		now:     time.Now,
		rand:    rand.Reader,
		entries: make(map[string]entry[T]),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores the value behind a fresh unguessable token and sweeps expired
// entries while it holds the lock.
func (s *Store[T]) Put(value T) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	token, err := s.newToken(now)
	if err != nil {
		return "", err
	}
	s.entries[token] = entry[T]{value: value, created: now}
	return token, nil
}

// Consume atomically removes and returns the value for the token. A second
// call with the same token always fails with ErrNotFound; a call past the
// TTL fails with ErrExpired.
func (s *Store[T]) Consume(token string) (T, error) {
	var zero T

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return zero, ErrNotFound
	}
	delete(s.entries, token)

	if s.now().Sub(e.created) > s.ttl {
		return zero, ErrExpired
	}
	return e.value, nil
}

// Len reports the number of live entries. Entries past the TTL are not
// counted even before a sweep removes them.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	live := 0
	for _, e := range s.entries {
		if now.Sub(e.created) <= s.ttl {
			live++
		}
	}
	return live
}

// sweepLocked drops entries past the TTL. Caller holds the lock.
func (s *Store[T]) sweepLocked(now time.Time) {
	for token, e := range s.entries {
		if now.Sub(e.created) > s.ttl {
			delete(s.entries, token)
		}
	}
}

// newToken builds a token from the current time plus a random suffix. The
// timestamp keeps tokens unique across restarts; the suffix makes them
// unguessable.
func (s *Store[T]) newToken(now time.Time) (string, error) {
	suffix := make([]byte, 16)
	if _, err := io.ReadFull(s.rand, suffix); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return strconv.FormatInt(now.UnixNano(), 36) + "-" + hex.EncodeToString(suffix), nil
}
