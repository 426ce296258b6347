package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/pinecone"
)

func TestInstrumentVectorStoreWithoutMetricsIsIdentity(t *testing.T) {
	inner := &testVectorStore{}
	if got := instrumentVectorStore("qdrant", inner, nil); got != pinecone.VectorStore(inner) {
		t.Fatalf("expected inner store back when metrics are off")
	}
}

func TestInstrumentVectorStoreRecordsOperations(t *testing.T) {
	m := observability.New()
	want := errors.New("query failed")
	inner := &testVectorStore{err: want}
	vs := instrumentVectorStore("qdrant", inner, m)

	if _, err := vs.QueryMatches(context.Background(), "ns", []float32{1, 2, 3}, 3); !errors.Is(err, want) {
		t.Fatalf("QueryMatches: want=%v got=%v", want, err)
	}
	if len(inner.namespaces) != 1 {
		t.Fatalf("inner calls: want=1 got=%d", len(inner.namespaces))
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	const line = `unravel_vector_store_operation_duration_seconds_count{operation="query_matches",provider="qdrant",status="error"} 1`
	if !strings.Contains(rec.Body.String(), line) {
		t.Fatalf("metrics output missing %q", line)
	}
}
