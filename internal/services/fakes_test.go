package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/unravel-backend/internal/data/repos"
	"github.com/yungbote/unravel-backend/internal/data/repos/testutil"
	"github.com/yungbote/unravel-backend/internal/generation"
	"github.com/yungbote/unravel-backend/internal/indexing"
	"github.com/yungbote/unravel-backend/internal/platform/ctxutil"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/retrieval"
)

type fakeRetriever struct {
	mu       sync.Mutex
	passages []retrieval.Passage
	err      error
	calls    int
	last     retrieval.Query
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = q
	return f.passages, f.err
}

type fakeStream struct {
	frags []string
	i     int
	// block makes Recv wait after the fragments until Close.
	block bool
	// err is returned after the fragments instead of io.EOF.
	err    error
	closed chan struct{}
	once   sync.Once
}

func newFakeStream(frags ...string) *fakeStream {
	return &fakeStream{frags: frags, closed: make(chan struct{})}
}

func (s *fakeStream) Recv() (string, error) {
	if s.i < len(s.frags) {
		f := s.frags[s.i]
		s.i++
		return f, nil
	}
	if s.block {
		<-s.closed
		return "", errors.New("closed")
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	stream  *fakeStream
	openErr error
	calls   int
	last    generation.Request
}

func (g *fakeGenerator) Open(ctx context.Context, req generation.Request) (generation.Stream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if g.openErr != nil {
		return nil, g.openErr
	}
	return g.stream, nil
}

type fakeBucket struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleteErr error
	deleted   []string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (b *fakeBucket) UploadFile(ctx context.Context, key, contentType string, file io.Reader) error {
	if b.uploadErr != nil {
		return b.uploadErr
	}
	raw, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = raw
	return nil
}

func (b *fakeBucket) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (b *fakeBucket) DeleteFile(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, key)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, key)
	return nil
}

func (b *fakeBucket) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

type fakeIndexer struct {
	mu       sync.Mutex
	id       string
	err      error
	indexed  []indexing.Document
	bodies   []string
	removed  []string
	removeFn func(projectID, externalID string) error
}

func (ix *fakeIndexer) Index(ctx context.Context, doc indexing.Document) (indexing.Result, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.err != nil {
		return indexing.Result{}, ix.err
	}
	raw, _ := io.ReadAll(doc.Body)
	ix.indexed = append(ix.indexed, doc)
	ix.bodies = append(ix.bodies, string(raw))
	return indexing.Result{ExternalID: ix.id}, nil
}

func (ix *fakeIndexer) Remove(ctx context.Context, projectID, externalID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removed = append(ix.removed, externalID)
	if ix.removeFn != nil {
		return ix.removeFn(projectID, externalID)
	}
	return nil
}

type fakeCache struct {
	mu       sync.Mutex
	projects []string
}

func (c *fakeCache) InvalidateProject(ctx context.Context, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = append(c.projects, projectID)
	return nil
}

type harness struct {
	db            *gorm.DB
	projects      repos.ProjectRepo
	documents     repos.DocumentRepo
	conversations repos.ConversationRepo
	messages      repos.MessageRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return &harness{
		db:            db,
		projects:      repos.NewProjectRepo(db, log),
		documents:     repos.NewDocumentRepo(db, log),
		conversations: repos.NewConversationRepo(db, log),
		messages:      repos.NewMessageRepo(db, log),
	}
}

func userCtx(userID uuid.UUID) dbctx.Context {
	return dbctx.Context{Ctx: ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: userID})}
}

func (h *harness) countMessages(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := h.db.Table("messages").Count(&n).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return n
}

func (h *harness) countRows(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	if err := h.db.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
