package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultTopK is the number of passages a chat turn asks for.
	DefaultTopK = 10
	// UnknownDocument is the last step of the file-name fallback chain.
	UnknownDocument = "Unknown Document"
)

type Query struct {
	Text      string
	ProjectID uuid.UUID
	TopK      int
}

func (q Query) topK() int {
	if q.TopK <= 0 {
		return DefaultTopK
	}
	return q.TopK
}

// Passage is one retrieved chunk. It lives for a single request.
type Passage struct {
	Content  string   `json:"content"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Metadata is the typed view of the loosely shaped bag an index returns.
type Metadata struct {
	CustomFileName string `json:"custom_file_name,omitempty"`
	FileName       string `json:"file_name,omitempty"`
	SourceFileName string `json:"source_file_name,omitempty"`
	// LegacyFileName comes from the "file name" key older ingests wrote.
	LegacyFileName string         `json:"legacy_file_name,omitempty"`
	PageNumber     string         `json:"page_number,omitempty"`
	Raw            map[string]any `json:"raw,omitempty"`
}

// ResolvedFileName walks custom_metadata.file_name, file_name, the source
// node's file_name and "file name" in that order.
func (m Metadata) ResolvedFileName() string {
	for _, candidate := range []string{m.CustomFileName, m.FileName, m.SourceFileName, m.LegacyFileName} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return UnknownDocument
}

// MetadataFromMaps extracts the known fields from a node's metadata and,
// when available, the metadata of the source document it was split from.
func MetadataFromMaps(node, source map[string]any) Metadata {
	m := Metadata{Raw: node}
	if custom, ok := node["custom_metadata"].(map[string]any); ok {
		m.CustomFileName = stringValue(custom["file_name"])
	}
	m.FileName = stringValue(node["file_name"])
	if source != nil {
		m.SourceFileName = stringValue(source["file_name"])
	}
	m.LegacyFileName = stringValue(node["file name"])
	for _, key := range []string{"page_number", "page_label", "page"} {
		if p := stringValue(node[key]); p != "" {
			m.PageNumber = p
			break
		}
	}
	return m
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Retriever returns passages for a query, highest score first.
type Retriever interface {
	Retrieve(ctx context.Context, q Query) ([]Passage, error)
}

type RetrieverFunc func(ctx context.Context, q Query) ([]Passage, error)

func (f RetrieverFunc) Retrieve(ctx context.Context, q Query) ([]Passage, error) {
	return f(ctx, q)
}
