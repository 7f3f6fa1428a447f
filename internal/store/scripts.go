package store

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

//go:embed scripts/*.lua
var scriptFS embed.FS

// scriptNames are the four atomic scripts every ScriptHost preloads, in the
// order spec.md §4.6 documents them.
var scriptNames = []string{"best", "rangescore", "around", "keeptop"}

// ScriptHost loads the package's server-side scripts once and resolves them
// by name thereafter. Resolution before Prepare triggers Prepare, matching
// spec.md §4.5 ("resolution of a name before preload triggers preload").
type ScriptHost struct {
	client redis.UniversalClient

	once    sync.Once
	prepErr error

	mu      sync.RWMutex
	digests map[string]string
	scripts map[string]*redis.Script
}

func newScriptHost(client redis.UniversalClient) *ScriptHost {
	return &ScriptHost{
		client:  client,
		digests: make(map[string]string),
		scripts: make(map[string]*redis.Script),
	}
}

// Prepare loads every embedded script and registers it with the store,
// recording its server-assigned content digest. Idempotent and safe to call
// from multiple goroutines concurrently; only the first call does any work.
func (h *ScriptHost) Prepare(ctx context.Context) error {
	h.once.Do(func() {
		h.prepErr = h.loadAll(ctx)
	})
	return h.prepErr
}

func (h *ScriptHost) loadAll(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, name := range scriptNames {
		src, err := scriptFS.ReadFile(fmt.Sprintf("scripts/%s.lua", name))
		if err != nil {
			return fmt.Errorf("store: reading embedded script %q: %w", name, err)
		}
		script := redis.NewScript(string(src))
		digest, err := script.Load(ctx, h.client).Result()
		if err != nil {
			return fmt.Errorf("store: loading script %q: %w", name, err)
		}
		h.scripts[name] = script
		h.digests[name] = digest
	}
	return nil
}

// Digest returns the server-assigned SHA1 digest for a preloaded script
// name, triggering Prepare first if needed.
func (h *ScriptHost) Digest(ctx context.Context, name string) (string, error) {
	if err := h.Prepare(ctx); err != nil {
		return "", err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	d, ok := h.digests[name]
	if !ok {
		return "", fmt.Errorf("store: unknown script %q", name)
	}
	return d, nil
}

// Run preloads if needed, then evaluates the named script against exactly
// one key via go-redis's Script.Run (EVALSHA with automatic EVAL fallback on
// NOSCRIPT).
func (h *ScriptHost) Run(ctx context.Context, name string, key string, args ...any) *redis.Cmd {
	return h.RunOn(ctx, h.client, name, key, args...)
}

// RunOn is Run against an explicit Cmdable, letting a caller queue a script
// invocation into a pipeline instead of running it standalone. The NOSCRIPT
// fallback inside Script.Run inspects the command's error before Exec, which
// is always nil for a freshly queued pipeline command, so queuing always
// takes the EVALSHA path — safe here because Prepare guarantees every script
// is already registered with the store before any RunOn call.
func (h *ScriptHost) RunOn(ctx context.Context, c redis.Scripter, name string, key string, args ...any) *redis.Cmd {
	if err := h.Prepare(ctx); err != nil {
		cmd := redis.NewCmd(ctx)
		cmd.SetErr(err)
		return cmd
	}
	h.mu.RLock()
	script := h.scripts[name]
	h.mu.RUnlock()
	if script == nil {
		cmd := redis.NewCmd(ctx)
		cmd.SetErr(fmt.Errorf("store: unknown script %q", name))
		return cmd
	}
	return script.Run(ctx, c, []string{key}, args...)
}
