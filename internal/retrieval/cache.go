package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

const cacheKeyPrefix = "unravel:retrieval:"

// Cached memoizes non-empty results in redis. Cache faults fall through to
// the backend.
type Cached struct {
	log     *logger.Logger
	rdb     redis.UniversalClient
	next    Retriever
	ttl     time.Duration
	metrics *observability.Metrics
}

func NewCached(log *logger.Logger, rdb redis.UniversalClient, next Retriever, ttl time.Duration, metrics *observability.Metrics) *Cached {
	return &Cached{log: log.With("component", "RetrievalCache"), rdb: rdb, next: next, ttl: ttl, metrics: metrics}
}

func CacheKey(q Query) string {
	h := sha256.New()
	h.Write([]byte(q.ProjectID.String()))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(q.topK())))
	h.Write([]byte{0})
	h.Write([]byte(q.Text))
	return cacheKeyPrefix + q.ProjectID.String() + ":" + hex.EncodeToString(h.Sum(nil))
}

func (c *Cached) Retrieve(ctx context.Context, q Query) ([]Passage, error) {
	key := CacheKey(q)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []Passage
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			c.metrics.IncRetrievalCache("hit")
			return cached, nil
		}
		c.metrics.IncRetrievalCache("error")
	case errors.Is(err, redis.Nil):
		c.metrics.IncRetrievalCache("miss")
	default:
		c.metrics.IncRetrievalCache("error")
		c.log.Warn("retrieval cache read failed", "error", err)
	}

	passages, err := c.next.Retrieve(ctx, q)
	if err != nil || len(passages) == 0 {
		return passages, err
	}
	if buf, jerr := json.Marshal(passages); jerr == nil {
		if serr := c.rdb.Set(ctx, key, buf, c.ttl).Err(); serr != nil {
			c.log.Warn("retrieval cache write failed", "error", serr)
		}
	}
	return passages, nil
}

// InvalidateProject drops every cached result for a project.
func (c *Cached) InvalidateProject(ctx context.Context, projectID string) error {
	iter := c.rdb.Scan(ctx, 0, cacheKeyPrefix+projectID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
