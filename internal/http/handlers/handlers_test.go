package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/unravel-backend/internal/data/repos"
	"github.com/yungbote/unravel-backend/internal/data/repos/testutil"
	types "github.com/yungbote/unravel-backend/internal/domain"
	"github.com/yungbote/unravel-backend/internal/domain/chat"
	"github.com/yungbote/unravel-backend/internal/generation"
	"github.com/yungbote/unravel-backend/internal/http/middleware"
	"github.com/yungbote/unravel-backend/internal/http/response"
	"github.com/yungbote/unravel-backend/internal/indexing"
	"github.com/yungbote/unravel-backend/internal/platform/ctxutil"
	"github.com/yungbote/unravel-backend/internal/retrieval"
	"github.com/yungbote/unravel-backend/internal/services"
)

type sliceStream struct {
	frags []string
	i     int
	err   error
}

func (s *sliceStream) Recv() (string, error) {
	if s.i >= len(s.frags) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	f := s.frags[s.i]
	s.i++
	return f, nil
}

func (s *sliceStream) Close() error { return nil }

type stubGenerator struct {
	frags   []string
	openErr error
	// recvErr ends the stream after frags instead of io.EOF.
	recvErr error
}

func (g *stubGenerator) Open(ctx context.Context, req generation.Request) (generation.Stream, error) {
	if g.openErr != nil {
		return nil, g.openErr
	}
	return &sliceStream{frags: g.frags, err: g.recvErr}, nil
}

type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memBucket) UploadFile(ctx context.Context, key, contentType string, file io.Reader) error {
	raw, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = raw
	return nil
}

func (b *memBucket) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (b *memBucket) DeleteFile(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memBucket) GetPublicURL(key string) string { return "https://cdn.test/" + key }

type stubIndexer struct{}

func (stubIndexer) Index(ctx context.Context, doc indexing.Document) (indexing.Result, error) {
	_, _ = io.Copy(io.Discard, doc.Body)
	return indexing.Result{ExternalID: "file-1"}, nil
}

func (stubIndexer) Remove(ctx context.Context, projectID, externalID string) error { return nil }

type testServer struct {
	engine    *gin.Engine
	userID    uuid.UUID
	generator *stubGenerator
	passages  []retrieval.Passage
	bucket    *memBucket
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	projectRepo := repos.NewProjectRepo(db, log)
	documentRepo := repos.NewDocumentRepo(db, log)
	conversationRepo := repos.NewConversationRepo(db, log)
	messageRepo := repos.NewMessageRepo(db, log)

	ts := &testServer{
		userID:    uuid.New(),
		generator: &stubGenerator{},
		bucket:    &memBucket{objects: map[string][]byte{}},
	}
	retriever := retrieval.RetrieverFunc(func(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
		return ts.passages, nil
	})

	catalog := generation.DefaultCatalog()
	projectSvc := services.NewProjectService(db, log, nil, projectRepo, documentRepo, conversationRepo, messageRepo, ts.bucket, stubIndexer{}, nil)
	documentSvc := services.NewDocumentService(db, log, nil, projectRepo, documentRepo, ts.bucket, stubIndexer{}, nil)
	conversationSvc := services.NewConversationService(db, log, projectRepo, conversationRepo, messageRepo)
	chatSvc := services.NewChatService(db, log, nil, projectRepo, documentRepo, conversationRepo, messageRepo, retriever, ts.generator, catalog)

	chatH := NewChatHandler(log, chatSvc)
	projectH := NewProjectHandler(projectSvc, documentSvc, conversationSvc)
	conversationH := NewConversationHandler(conversationSvc)
	documentH := NewDocumentHandler(documentSvc)
	modelsH := NewModelsHandler(catalog)

	r := gin.New()
	r.Use(middleware.Recovery(log))
	anon := r.Group("/anon")
	anon.POST("/chat", chatH.Chat)

	api := r.Group("/api")
	api.Use(func(c *gin.Context) {
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: ts.userID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	api.POST("/chat", chatH.Chat)
	api.GET("/models", modelsH.List)
	api.GET("/projects", projectH.List)
	api.POST("/projects", projectH.Create)
	api.GET("/projects/:id", projectH.Get)
	api.PATCH("/projects/:id", projectH.Update)
	api.DELETE("/projects/:id", projectH.Delete)
	api.GET("/projects/:id/documents", projectH.ListDocuments)
	api.GET("/projects/:id/conversations", projectH.ListConversations)
	api.GET("/conversations", conversationH.List)
	api.DELETE("/conversations", conversationH.Delete)
	api.GET("/conversations/:id", conversationH.Get)
	api.PATCH("/conversations/:id", conversationH.Update)
	api.DELETE("/conversations/:id", conversationH.Delete)
	api.POST("/documents/upload", documentH.Upload)
	api.POST("/documents/ingest", documentH.Ingest)
	api.DELETE("/documents/:documentId", documentH.Delete)

	ts.engine = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body
}

func (ts *testServer) createProject(t *testing.T, name string) *types.Project {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/projects", map[string]string{"name": name})
	if w.Code != http.StatusCreated {
		t.Fatalf("create project: want=%d got=%d body=%s", http.StatusCreated, w.Code, w.Body.String())
	}
	var p types.Project
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	return &p
}

func (ts *testServer) upload(t *testing.T, projectID, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if projectID != "" {
		_ = mw.WriteField("projectId", projectID)
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = fw.Write(content)
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func TestChatRequiresUser(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/anon/chat", map[string]string{"message": "hi", "projectId": uuid.NewString()})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=%d got=%d", http.StatusUnauthorized, w.Code)
	}
	if got := decodeError(t, w).Error; got != "Unauthorized" {
		t.Fatalf("error: want=%q got=%q", "Unauthorized", got)
	}
}

func TestChatMalformedBody(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: want=%d got=%d", http.StatusBadRequest, w.Code)
	}
	if got := decodeError(t, w).Code; got != "invalid_request" {
		t.Fatalf("code: want=%q got=%q", "invalid_request", got)
	}
}

func TestChatCannedReplyWithoutDocuments(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProject(t, "Empty")

	w := ts.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "hello", "projectId": p.ID.String()})
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d body=%s", http.StatusOK, w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != services.NoDocumentsReply {
		t.Fatalf("body: want=%q got=%q", services.NoDocumentsReply, got)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type: want text/event-stream got=%q", ct)
	}
	convID := w.Header().Get(middleware.HeaderConversationID)
	if _, err := uuid.Parse(convID); err != nil {
		t.Fatalf("conversation header: %q: %v", convID, err)
	}

	detail := ts.do(t, http.MethodGet, "/api/conversations/"+convID, nil)
	if detail.Code != http.StatusOK {
		t.Fatalf("get conversation: want=%d got=%d", http.StatusOK, detail.Code)
	}
	var got struct {
		Title    string                 `json:"title"`
		Messages []services.MessageView `json:"messages"`
	}
	if err := json.Unmarshal(detail.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	if got.Title != "hello" {
		t.Fatalf("title: want=%q got=%q", "hello", got.Title)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("messages: want=2 got=%d", len(got.Messages))
	}
	if got.Messages[1].Content != services.NoDocumentsReply {
		t.Fatalf("assistant content: want=%q got=%q", services.NoDocumentsReply, got.Messages[1].Content)
	}
}

func TestChatStreamsAnswerThenSources(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProject(t, "Policies")

	up := ts.upload(t, p.ID.String(), "policy.pdf", []byte("%PDF-1.4 refunds"))
	if up.Code != http.StatusCreated {
		t.Fatalf("upload: want=%d got=%d body=%s", http.StatusCreated, up.Code, up.Body.String())
	}
	var doc types.Document
	if err := json.Unmarshal(up.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	ing := ts.do(t, http.MethodPost, "/api/documents/ingest", map[string]string{"documentId": doc.ID.String()})
	if ing.Code != http.StatusOK {
		t.Fatalf("ingest: want=%d got=%d body=%s", http.StatusOK, ing.Code, ing.Body.String())
	}

	ts.passages = []retrieval.Passage{{
		Content:  "Refunds are issued within 30 days.",
		Score:    0.9,
		Metadata: retrieval.Metadata{FileName: "policy.pdf"},
	}}
	ts.generator.frags = []string{"Refunds take ", "30 days."}

	w := ts.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "How long do refunds take?", "projectId": p.ID.String()})
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d body=%s", http.StatusOK, w.Code, w.Body.String())
	}
	body := w.Body.String()
	idx := strings.Index(body, services.SourcesMarker)
	if idx < 0 {
		t.Fatalf("missing sources marker in %q", body)
	}
	if answer := body[:idx]; answer != "Refunds take 30 days." {
		t.Fatalf("answer: want=%q got=%q", "Refunds take 30 days.", answer)
	}
	var cites []chat.Citation
	if err := json.Unmarshal([]byte(body[idx+len(services.SourcesMarker):]), &cites); err != nil {
		t.Fatalf("decode sources: %v", err)
	}
	if len(cites) != 1 || cites[0].FileName != "policy.pdf" {
		t.Fatalf("sources: got=%+v", cites)
	}
}

func TestChatMidStreamFailureAbortsResponse(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProject(t, "Flaky")
	up := ts.upload(t, p.ID.String(), "policy.pdf", []byte("%PDF-1.4 refunds"))
	if up.Code != http.StatusCreated {
		t.Fatalf("upload: want=%d got=%d body=%s", http.StatusCreated, up.Code, up.Body.String())
	}
	var doc types.Document
	if err := json.Unmarshal(up.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if ing := ts.do(t, http.MethodPost, "/api/documents/ingest", map[string]string{"documentId": doc.ID.String()}); ing.Code != http.StatusOK {
		t.Fatalf("ingest: want=%d got=%d", http.StatusOK, ing.Code)
	}
	ts.passages = []retrieval.Passage{{Content: "Refunds in 30 days.", Score: 0.9, Metadata: retrieval.Metadata{FileName: "policy.pdf"}}}
	ts.generator.frags = []string{"partial answer"}
	ts.generator.recvErr = errors.New("upstream 500 mid-stream")

	srv := httptest.NewServer(ts.engine)
	defer srv.Close()

	raw, _ := json.Marshal(map[string]string{"message": "refunds?", "projectId": p.ID.String()})
	resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: want=%d got=%d", http.StatusOK, resp.StatusCode)
	}
	body, readErr := io.ReadAll(resp.Body)
	if readErr == nil {
		t.Fatalf("read: want transport error got clean body %q", body)
	}
	if strings.Contains(string(body), services.SourcesMarker) {
		t.Fatalf("body: want no sources marker got=%q", body)
	}

	convID := resp.Header.Get(middleware.HeaderConversationID)
	detail := ts.do(t, http.MethodGet, "/api/conversations/"+convID, nil)
	if detail.Code != http.StatusOK {
		t.Fatalf("get conversation: want=%d got=%d", http.StatusOK, detail.Code)
	}
	var got struct {
		Messages []services.MessageView `json:"messages"`
	}
	if err := json.Unmarshal(detail.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != types.RoleUser {
		t.Fatalf("messages: want the user message only got=%+v", got.Messages)
	}
}

func TestChatGenerationOpenFailureIsJSON(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProject(t, "Broken")
	if up := ts.upload(t, p.ID.String(), "a.txt", []byte("text")); up.Code != http.StatusCreated {
		t.Fatalf("upload: want=%d got=%d", http.StatusCreated, up.Code)
	}
	// Ingest so the project has a ready document and generation runs.
	docs := ts.do(t, http.MethodGet, "/api/projects/"+p.ID.String()+"/documents", nil)
	var rows []types.Document
	if err := json.Unmarshal(docs.Body.Bytes(), &rows); err != nil || len(rows) != 1 {
		t.Fatalf("list documents: err=%v rows=%d", err, len(rows))
	}
	if ing := ts.do(t, http.MethodPost, "/api/documents/ingest", map[string]string{"documentId": rows[0].ID.String()}); ing.Code != http.StatusOK {
		t.Fatalf("ingest: want=%d got=%d", http.StatusOK, ing.Code)
	}

	ts.generator.openErr = errors.New("upstream down")
	w := ts.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "q", "projectId": p.ID.String()})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: want=%d got=%d", http.StatusBadGateway, w.Code)
	}
	if got := decodeError(t, w).Code; got != "generation_failed" {
		t.Fatalf("code: want=%q got=%q", "generation_failed", got)
	}
}

func TestChatUnknownModel(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProject(t, "Models")
	w := ts.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "q", "projectId": p.ID.String(), "model": "nope/nope"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: want=%d got=%d", http.StatusBadRequest, w.Code)
	}
}

func TestProjectLifecycle(t *testing.T) {
	ts := newTestServer(t)

	if w := ts.do(t, http.MethodPost, "/api/projects", map[string]string{"name": "   "}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank name: want=%d got=%d", http.StatusBadRequest, w.Code)
	}

	p := ts.createProject(t, "Handbook")

	w := ts.do(t, http.MethodPatch, "/api/projects/"+p.ID.String(), map[string]string{"name": "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: want=%d got=%d", http.StatusOK, w.Code)
	}
	var updated types.Project
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Name != "Renamed" {
		t.Fatalf("name: want=%q got=%q", "Renamed", updated.Name)
	}

	list := ts.do(t, http.MethodGet, "/api/projects", nil)
	var rows []types.Project
	if err := json.Unmarshal(list.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("projects: want=1 got=%d", len(rows))
	}

	del := ts.do(t, http.MethodDelete, "/api/projects/"+p.ID.String(), nil)
	if del.Code != http.StatusOK || !strings.Contains(del.Body.String(), `"success":true`) {
		t.Fatalf("delete: code=%d body=%s", del.Code, del.Body.String())
	}
	if w := ts.do(t, http.MethodGet, "/api/projects/"+p.ID.String(), nil); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted: want=%d got=%d", http.StatusNotFound, w.Code)
	}
}

func TestProjectNotOwned(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProject(t, "Mine")
	ts.userID = uuid.New()
	if w := ts.do(t, http.MethodGet, "/api/projects/"+p.ID.String(), nil); w.Code != http.StatusNotFound {
		t.Fatalf("foreign project: want=%d got=%d", http.StatusNotFound, w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/projects/not-a-uuid", nil); w.Code != http.StatusNotFound {
		t.Fatalf("malformed id: want=%d got=%d", http.StatusNotFound, w.Code)
	}
}

func TestUploadValidation(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProject(t, "Docs")

	cases := []struct {
		name      string
		projectID string
		fileName  string
		wantCode  int
		wantError string
	}{
		{"no file", p.ID.String(), "", http.StatusBadRequest, "No file provided"},
		{"no project", "", "a.pdf", http.StatusBadRequest, "Project ID required"},
		{"bad type", p.ID.String(), "a.exe", http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.upload(t, tc.projectID, tc.fileName, []byte("x"))
			if w.Code != tc.wantCode {
				t.Fatalf("status: want=%d got=%d body=%s", tc.wantCode, w.Code, w.Body.String())
			}
			if tc.wantError != "" {
				if got := decodeError(t, w).Error; got != tc.wantError {
					t.Fatalf("error: want=%q got=%q", tc.wantError, got)
				}
			}
		})
	}
}

func TestDocumentUploadAndDelete(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProject(t, "Docs")

	up := ts.upload(t, p.ID.String(), "notes.md", []byte("# notes"))
	if up.Code != http.StatusCreated {
		t.Fatalf("upload: want=%d got=%d body=%s", http.StatusCreated, up.Code, up.Body.String())
	}
	var doc types.Document
	_ = json.Unmarshal(up.Body.Bytes(), &doc)
	if doc.Status != types.DocumentStatusUploading {
		t.Fatalf("status: want=%q got=%q", types.DocumentStatusUploading, doc.Status)
	}

	del := ts.do(t, http.MethodDelete, "/api/documents/"+doc.ID.String(), nil)
	if del.Code != http.StatusOK {
		t.Fatalf("delete: want=%d got=%d body=%s", http.StatusOK, del.Code, del.Body.String())
	}
	ts.bucket.mu.Lock()
	left := len(ts.bucket.objects)
	ts.bucket.mu.Unlock()
	if left != 0 {
		t.Fatalf("objects: want=0 got=%d", left)
	}
}

func TestConversationDeleteByQuery(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProject(t, "Chats")
	w := ts.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "first", "projectId": p.ID.String()})
	convID := w.Header().Get(middleware.HeaderConversationID)

	if w := ts.do(t, http.MethodDelete, "/api/conversations", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing id: want=%d got=%d", http.StatusBadRequest, w.Code)
	}
	if w := ts.do(t, http.MethodDelete, "/api/conversations?id="+convID, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: want=%d got=%d body=%s", http.StatusOK, w.Code, w.Body.String())
	}
	if w := ts.do(t, http.MethodGet, "/api/conversations/"+convID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted: want=%d got=%d", http.StatusNotFound, w.Code)
	}
}

func TestModelsList(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/models", nil)
	var body struct {
		Models  []generation.Model `json:"models"`
		Default string             `json:"default"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Default != generation.DefaultModelID {
		t.Fatalf("default: want=%q got=%q", generation.DefaultModelID, body.Default)
	}
	if len(body.Models) == 0 {
		t.Fatalf("models: want non-empty")
	}
}
