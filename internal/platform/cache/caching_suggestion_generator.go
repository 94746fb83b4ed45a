// Package cache provides caching decorators for pipeline collaborators.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"photo_backend/internal/feature/sceneinsight/domain/entity"
	"photo_backend/internal/feature/sceneinsight/usecase"
)

// cachedSuggestion is the JSON document stored per label.
type cachedSuggestion struct {
	Text string `json:"text"`
}

// CachingSuggestionGenerator decorates a SuggestionGenerator with Redis caching.
// Concurrent misses for the same label share a single upstream call.
type CachingSuggestionGenerator struct {
	inner     usecase.SuggestionGenerator
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	group     singleflight.Group
}

// CachingSuggestionGeneratorがSuggestionGeneratorを実装していることをコンパイル時に検証します。
var _ usecase.SuggestionGenerator = (*CachingSuggestionGenerator)(nil)

// NewCachingSuggestionGenerator decorates a SuggestionGenerator with Redis caching.
// If ttl is 0, it defaults to 24 hours. If namespace is empty, it uses "suggestions".
// A nil rdb disables caching but keeps de-duplication of concurrent calls.
func NewCachingSuggestionGenerator(rdb *redis.Client, ttl time.Duration, inner usecase.SuggestionGenerator, namespace string) *CachingSuggestionGenerator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if namespace == "" {
		namespace = "suggestions"
	}
	return &CachingSuggestionGenerator{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Generate returns the cached text for the prompt's label, or calls the inner generator.
func (c *CachingSuggestionGenerator) Generate(ctx context.Context, prompt entity.Prompt) (string, error) {
	key := c.cacheKey(prompt.Label)

	// 1) Check cache
	if text, ok := c.lookup(ctx, key); ok {
		return text, nil
	}

	// 2) Call the inner generator once per key. The shared call must not be
	// cancelled by whichever caller happened to start it, but keeps its deadline.
	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := detach(ctx)
		defer cancel()

		text, err := c.inner.Generate(callCtx, prompt)
		if err != nil {
			return "", err
		}
		// 3) Store in cache (best effort)
		c.store(callCtx, key, text)
		return text, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *CachingSuggestionGenerator) lookup(ctx context.Context, key string) (string, bool) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return "", false
	}
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil || len(b) == 0 {
		return "", false
	}
	var v cachedSuggestion
	if err := json.Unmarshal(b, &v); err == nil && strings.TrimSpace(v.Text) != "" {
		return v.Text, true
	}
	// Delete corrupted or empty cache entry
	_ = c.rdb.Del(ctx, key).Err()
	return "", false
}

func (c *CachingSuggestionGenerator) store(ctx context.Context, key, text string) {
	if c.rdb == nil || strings.TrimSpace(text) == "" {
		return
	}
	if b, err := json.Marshal(cachedSuggestion{Text: text}); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
}

// cacheKey generates a cache key for a scene label. Labels are case-insensitive.
func (c *CachingSuggestionGenerator) cacheKey(label string) string {
	return fmt.Sprintf("%s:%s", c.namespace, safe(strings.ToLower(strings.TrimSpace(label))))
}

// detach returns a context that ignores the parent's cancellation but keeps its deadline.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if dl, ok := ctx.Deadline(); ok {
		return context.WithDeadline(base, dl)
	}
	return context.WithCancel(base)
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
