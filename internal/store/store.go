// Package store is the transport layer binding the leaderboard package to a
// Redis (or Redis-protocol-compatible) sorted-set store: connection pooling,
// pipelines, and the Lua script host live here so the root package can stay
// free of wire-level concerns.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/leaderboard/pkg/circuitbreaker"
)

// Config holds the store connection configuration.
type Config struct {
	// Host is the store server hostname.
	Host string

	// Port is the store server port.
	Port int

	// Password is the store authentication password (empty if no auth).
	Password string

	// DB is the store logical database number.
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// MaxRetries is the maximum number of retries the client itself performs
	// before surfacing a transport error (separate from the package-level
	// Update retry loop, which retries at the operation level).
	MaxRetries int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration

	// PoolTimeout is the timeout for getting a connection from the pool.
	PoolTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration pointing at a local store.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// Addr returns the store address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Store owns the pooled connection to the backing sorted-set store and the
// prepared script host shared by every Leaderboard/PeriodicLeaderboard built
// on top of it.
type Store struct {
	client  redis.UniversalClient
	config  Config
	scripts *ScriptHost
	breaker *circuitbreaker.CircuitBreaker
}

// Open constructs a Store, verifying connectivity with a single PING, and
// preloads its script host.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("store: connection failed: %w", err)
	}

	s := &Store{client: client, config: cfg, breaker: circuitbreaker.StoreBreaker(nil)}
	s.scripts = newScriptHost(client)
	if err := s.scripts.Prepare(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: script preload failed: %w", err)
	}
	return s, nil
}

// OpenWithClient wraps an already-constructed client — used by tests against
// miniredis, where a *redis.Client is built directly against a local listener
// instead of through Config/Addr.
func OpenWithClient(ctx context.Context, client redis.UniversalClient) (*Store, error) {
	s := &Store{client: client, breaker: circuitbreaker.StoreBreaker(nil)}
	s.scripts = newScriptHost(client)
	if err := s.scripts.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("store: script preload failed: %w", err)
	}
	return s, nil
}

// Client returns the underlying Redis client for operations the Store
// doesn't itself wrap. Use with caution — prefer Session for scoped work.
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

// Scripts returns the store's prepared script host.
func (s *Store) Scripts() *ScriptHost {
	return s.scripts
}

// Breaker returns the store's circuit breaker, shared by every Session
// borrowed from it.
func (s *Store) Breaker() *circuitbreaker.CircuitBreaker {
	return s.breaker
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if closer, ok := s.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Session is a scoped unit of work borrowed from a Store: a single logical
// leaderboard's view onto the shared connection pool and script host, per
// spec.md §5's "StoreSession: borrow connection / scoped unit of work" role.
type Session struct {
	store *Store
}

// NewSession borrows a Session from store. Sessions are cheap — they hold no
// dedicated connection, only a reference to the shared pool — and may be
// created per Leaderboard instance freely.
func NewSession(s *Store) *Session {
	return &Session{store: s}
}

// Client returns the shared pooled client.
func (s *Session) Client() redis.UniversalClient {
	return s.store.client
}

// Scripts returns the shared prepared script host.
func (s *Session) Scripts() *ScriptHost {
	return s.store.scripts
}

// Guard runs fn behind the store's circuit breaker, so a string of
// connection failures opens the circuit and fails fast instead of letting
// every caller hang on the pool/socket timeouts in turn. Per spec.md §5,
// this is what makes command dispatch "optionally" breaker-wrapped — a
// Session always gates through it, but a failing fn still surfaces its own
// error for the caller to classify and wrap.
func (s *Session) Guard(ctx context.Context, fn func(context.Context) error) error {
	return s.store.breaker.Execute(ctx, fn)
}

// Breaker returns the shared circuit breaker, for callers that want to
// observe its state (e.g. health checks) without dispatching through it.
func (s *Session) Breaker() *circuitbreaker.CircuitBreaker {
	return s.store.breaker
}
