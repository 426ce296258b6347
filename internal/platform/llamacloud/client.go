package llamacloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/unravel-backend/internal/platform/ctxutil"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

const maxErrorBodyBytes = 1024

type Pipeline struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
}

type File struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PipelineFile attaches an uploaded file to a pipeline with metadata that
// is copied onto every node indexed from it.
type PipelineFile struct {
	FileID         string         `json:"file_id"`
	CustomMetadata map[string]any `json:"custom_metadata,omitempty"`
}

// Node is one retrieved passage.
type Node struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]any
	// SourceMetadata is the metadata of the source document the node was
	// split from, when the service reports it.
	SourceMetadata map[string]any
}

type Client interface {
	PipelineName(projectID string) string
	EnsurePipeline(ctx context.Context, name string) (Pipeline, error)
	Retrieve(ctx context.Context, pipelineID, query string, topK int) ([]Node, error)
	UploadFile(ctx context.Context, fileName, contentType string, r io.Reader) (File, error)
	AddFilesToPipeline(ctx context.Context, pipelineID string, files []PipelineFile) error
	RemoveFileFromPipeline(ctx context.Context, pipelineID, fileID string) error
}

type client struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client

	mu        sync.Mutex
	projectID string
	pipelines map[string]Pipeline
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	return newClient(log, cfg, nil)
}

func newClient(log *logger.Logger, cfg Config, transport http.RoundTripper) (*client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.ProjectName == "" {
		cfg.ProjectName = DefaultProjectName
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &client{
		log:       log.With("client", "LlamaCloudClient"),
		cfg:       cfg,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      &http.Client{Timeout: timeout, Transport: transport},
		pipelines: map[string]Pipeline{},
	}, nil
}

func (c *client) PipelineName(projectID string) string {
	return c.cfg.PipelineName(projectID)
}

// EnsurePipeline returns the named pipeline, creating it on first use.
func (c *client) EnsurePipeline(ctx context.Context, name string) (Pipeline, error) {
	const op = "ensure_pipeline"
	name = strings.TrimSpace(name)
	if name == "" {
		return Pipeline{}, opErr(op, OperationErrorValidation, "pipeline name is required", nil)
	}
	c.mu.Lock()
	if p, ok := c.pipelines[name]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	q := url.Values{}
	q.Set("project_name", c.cfg.ProjectName)
	q.Set("pipeline_name", name)
	var found []Pipeline
	if err := c.doJSON(ctx, op, http.MethodGet, "/pipelines?"+q.Encode(), nil, &found); err != nil {
		return Pipeline{}, err
	}
	var p Pipeline
	for _, candidate := range found {
		if candidate.Name == name && candidate.ID != "" {
			p = candidate
			break
		}
	}
	if p.ID == "" {
		projectID, err := c.resolveProjectID(ctx)
		if err != nil {
			return Pipeline{}, err
		}
		body := map[string]any{
			"name": name,
			"transform_config": map[string]any{
				"mode":          "auto",
				"chunk_size":    1024,
				"chunk_overlap": 200,
			},
		}
		if key := strings.TrimSpace(c.cfg.HuggingFaceAPIKey); key != "" {
			body["embedding_config"] = map[string]any{
				"type": "HUGGINGFACE_API_EMBEDDING",
				"component": map[string]any{
					"model_name": "BAAI/bge-small-en-v1.5",
					"token":      key,
				},
			}
		}
		path := "/pipelines?" + url.Values{"project_id": {projectID}}.Encode()
		if err := c.doJSON(ctx, op, http.MethodPut, path, body, &p); err != nil {
			return Pipeline{}, err
		}
		if p.ID == "" {
			return Pipeline{}, opErr(op, OperationErrorDecodeFailed, "pipeline upsert returned empty id", nil)
		}
		c.log.Info("LlamaCloud pipeline created", "pipeline", name, "pipeline_id", p.ID)
	}

	c.mu.Lock()
	c.pipelines[name] = p
	c.mu.Unlock()
	return p, nil
}

func (c *client) resolveProjectID(ctx context.Context) (string, error) {
	const op = "resolve_project"
	c.mu.Lock()
	if c.projectID != "" {
		id := c.projectID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var projects []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	path := "/projects?" + url.Values{"project_name": {c.cfg.ProjectName}}.Encode()
	if err := c.doJSON(ctx, op, http.MethodGet, path, nil, &projects); err != nil {
		return "", err
	}
	for _, p := range projects {
		if p.Name == c.cfg.ProjectName && p.ID != "" {
			c.mu.Lock()
			c.projectID = p.ID
			c.mu.Unlock()
			return p.ID, nil
		}
	}
	return "", &OperationError{
		Code:      OperationErrorNotFound,
		Operation: op,
		Message:   fmt.Sprintf("project %q not found", c.cfg.ProjectName),
	}
}

type retrieveResponse struct {
	RetrievalNodes []struct {
		Score float64 `json:"score"`
		Node  struct {
			ID            string                    `json:"id_"`
			Text          string                    `json:"text"`
			Metadata      map[string]any            `json:"metadata"`
			ExtraInfo     map[string]any            `json:"extra_info"`
			Relationships map[string]relatedNodeRef `json:"relationships"`
		} `json:"node"`
	} `json:"retrieval_nodes"`
}

type relatedNodeRef struct {
	NodeID   string         `json:"node_id"`
	Metadata map[string]any `json:"metadata"`
}

func (c *client) Retrieve(ctx context.Context, pipelineID, query string, topK int) ([]Node, error) {
	const op = "retrieve"
	if strings.TrimSpace(pipelineID) == "" {
		return nil, opErr(op, OperationErrorValidation, "pipeline id is required", nil)
	}
	if topK <= 0 {
		topK = 10
	}
	body := map[string]any{
		"query":                  query,
		"dense_similarity_top_k": topK,
	}
	var resp retrieveResponse
	if err := c.doJSON(ctx, op, http.MethodPost, "/pipelines/"+url.PathEscape(pipelineID)+"/retrieve", body, &resp); err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(resp.RetrievalNodes))
	for _, rn := range resp.RetrievalNodes {
		meta := rn.Node.Metadata
		if meta == nil {
			meta = rn.Node.ExtraInfo
		}
		n := Node{
			ID:       rn.Node.ID,
			Text:     rn.Node.Text,
			Score:    rn.Score,
			Metadata: meta,
		}
		// "1" is the SOURCE relationship in serialized nodes.
		for _, key := range []string{"1", "SOURCE", "source"} {
			if ref, ok := rn.Node.Relationships[key]; ok && ref.Metadata != nil {
				n.SourceMetadata = ref.Metadata
				break
			}
		}
		out = append(out, n)
	}
	return out, nil
}

func (c *client) UploadFile(ctx context.Context, fileName, contentType string, r io.Reader) (File, error) {
	const op = "upload_file"
	if strings.TrimSpace(fileName) == "" {
		return File{}, opErr(op, OperationErrorValidation, "file name is required", nil)
	}
	if r == nil {
		return File{}, opErr(op, OperationErrorValidation, "file body is required", nil)
	}
	projectID, err := c.resolveProjectID(ctx)
	if err != nil {
		return File{}, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="upload_file"; filename=%q`, fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return File{}, opErr(op, OperationErrorEncodeFailed, "create multipart part failed", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return File{}, opErr(op, OperationErrorEncodeFailed, "copy file body failed", err)
	}
	if err := mw.Close(); err != nil {
		return File{}, opErr(op, OperationErrorEncodeFailed, "close multipart writer failed", err)
	}

	path := "/files?" + url.Values{"project_id": {projectID}}.Encode()
	var f File
	if err := c.do(ctx, op, http.MethodPost, path, mw.FormDataContentType(), &buf, &f); err != nil {
		return File{}, err
	}
	if f.ID == "" {
		return File{}, opErr(op, OperationErrorDecodeFailed, "upload returned empty file id", nil)
	}
	return f, nil
}

func (c *client) AddFilesToPipeline(ctx context.Context, pipelineID string, files []PipelineFile) error {
	const op = "add_files"
	if strings.TrimSpace(pipelineID) == "" {
		return opErr(op, OperationErrorValidation, "pipeline id is required", nil)
	}
	if len(files) == 0 {
		return nil
	}
	return c.doJSON(ctx, op, http.MethodPut, "/pipelines/"+url.PathEscape(pipelineID)+"/files", files, nil)
}

func (c *client) RemoveFileFromPipeline(ctx context.Context, pipelineID, fileID string) error {
	const op = "remove_file"
	if strings.TrimSpace(pipelineID) == "" || strings.TrimSpace(fileID) == "" {
		return opErr(op, OperationErrorValidation, "pipeline id and file id are required", nil)
	}
	path := "/pipelines/" + url.PathEscape(pipelineID) + "/files/" + url.PathEscape(fileID)
	return c.doJSON(ctx, op, http.MethodDelete, path, nil, nil)
}

func (c *client) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
		contentType = "application/json"
	}
	return c.do(ctx, op, method, path, contentType, body, out)
}

func (c *client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, c.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "llamacloud request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		code := OperationErrorRequestFailed
		if resp.StatusCode == http.StatusNotFound {
			code = OperationErrorNotFound
		}
		return &OperationError{
			Code:       code,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("llamacloud http status=%d body=%q", resp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return opErr(op, OperationErrorDecodeFailed, "decode response failed", err)
	}
	return nil
}
