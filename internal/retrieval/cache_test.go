package retrieval

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

func TestCacheKeyIsScopedAndStable(t *testing.T) {
	p := uuid.New()
	a := CacheKey(Query{Text: "hello", ProjectID: p})
	b := CacheKey(Query{Text: "hello", ProjectID: p, TopK: DefaultTopK})
	if a != b {
		t.Fatalf("default topK should match explicit: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, cacheKeyPrefix+p.String()+":") {
		t.Fatalf("key prefix: got=%s", a)
	}
	if CacheKey(Query{Text: "hello", ProjectID: uuid.New()}) == a {
		t.Fatalf("keys must differ across projects")
	}
	if CacheKey(Query{Text: "hello!", ProjectID: p}) == a {
		t.Fatalf("keys must differ across queries")
	}
}

func TestCachedRoundTripAgainstRedis(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	calls := 0
	next := RetrieverFunc(func(ctx context.Context, q Query) ([]Passage, error) {
		calls++
		return []Passage{{Content: "alpha", Score: 0.5, Metadata: Metadata{FileName: "a.pdf"}}}, nil
	})
	c := NewCached(logger.Nop(), rdb, next, time.Minute, observability.New())
	q := Query{Text: "q-" + uuid.NewString(), ProjectID: uuid.New()}
	for i := 0; i < 2; i++ {
		got, err := c.Retrieve(context.Background(), q)
		if err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
		if len(got) != 1 || got[0].Metadata.ResolvedFileName() != "a.pdf" {
			t.Fatalf("passages: got=%+v", got)
		}
	}
	if calls != 1 {
		t.Fatalf("backend calls: want=1 got=%d", calls)
	}
	if err := c.InvalidateProject(context.Background(), q.ProjectID.String()); err != nil {
		t.Fatalf("InvalidateProject: %v", err)
	}
	if _, err := c.Retrieve(context.Background(), q); err != nil {
		t.Fatalf("Retrieve after invalidate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("backend calls after invalidate: want=2 got=%d", calls)
	}
}
