package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"commodity-rag/internal/embedding"
)

// Verify interface compliance
var _ embedding.Embedder = (*Embedder)(nil)

const keyPrefix = "embedding:"

// Embedder memoizes another embedder's vectors in Redis, keyed by embedder name
// and a hash of the text. Re-running an indexer over unchanged text then costs
// no inference calls.
type Embedder struct {
	next   embedding.Embedder
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// New wraps next. A zero ttl keeps entries until evicted by Redis.
func New(next embedding.Embedder, client *redis.Client, ttl time.Duration, log *slog.Logger) *Embedder {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Embedder{next: next, client: client, ttl: ttl, log: log}
}

func (e *Embedder) Name() string { return e.next.Name() }

func (e *Embedder) Dimension() int { return e.next.Dimension() }

// Embed returns the cached vector or computes and stores it. Redis failures are
// logged and fall through to the wrapped embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := e.key(text)
	data, err := e.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float64
		if jerr := json.Unmarshal(data, &vec); jerr == nil {
			return vec, nil
		}
		e.log.Warn("discarding corrupt cached embedding", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		e.log.Warn("embedding cache read failed", slog.Any("err", err))
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}
	if err := e.client.Set(ctx, key, payload, e.ttl).Err(); err != nil {
		e.log.Warn("embedding cache write failed", slog.Any("err", err))
	}
	return vec, nil
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + e.next.Name() + ":" + hex.EncodeToString(sum[:])
}

// Connect parses a redis:// URL (or a bare host:port) and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
