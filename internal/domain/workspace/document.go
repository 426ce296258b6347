package workspace

import (
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DocumentStatus string

const (
	DocumentStatusUploading  DocumentStatus = "uploading"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusError      DocumentStatus = "error"
)

// MaxDocumentBytes is the upload ceiling (10 MB).
const MaxDocumentBytes int64 = 10 * 1024 * 1024

var AllowedExtensions = []string{"pdf", "docx", "doc", "xlsx", "xls", "csv", "txt", "md", "json"}

var mimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"txt":  "text/plain",
	"md":   "text/markdown",
	"csv":  "text/csv",
	"json": "application/json",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

type Document struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index:idx_document_project_status,priority:1" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	FileName   string `gorm:"column:file_name;not null" json:"file_name"`
	FileType   string `gorm:"column:file_type;not null" json:"file_type"`
	FileSize   int64  `gorm:"column:file_size;not null" json:"file_size"`
	StorageKey string `gorm:"column:storage_key;not null" json:"-"`
	FileURL    string `gorm:"column:file_url" json:"file_url"`

	Status       DocumentStatus `gorm:"column:status;not null;index:idx_document_project_status,priority:2" json:"status"`
	ErrorMessage *string        `gorm:"column:error_message" json:"error_message"`
	LlamaFileID  *string        `gorm:"column:llama_file_id" json:"llama_file_id"`

	// IndexMetadata mirrors the custom metadata sent to the indexer.
	IndexMetadata datatypes.JSON `gorm:"column:index_metadata;type:jsonb" json:"index_metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Document) TableName() string { return "documents" }

// FileExtension returns the lower-cased extension without the dot.
func FileExtension(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(fileName)), "."))
}

func IsAllowedExtension(ext string) bool {
	return slices.Contains(AllowedExtensions, strings.ToLower(ext))
}

// MimeType maps a file name to its content type, defaulting to octet-stream.
func MimeType(fileName string) string {
	if mt, ok := mimeTypes[FileExtension(fileName)]; ok {
		return mt
	}
	return "application/octet-stream"
}

// FormatFileSize renders byte counts the way upload errors report them.
func FormatFileSize(n int64) string {
	const unit = 1024
	switch {
	case n < unit:
		return formatUnit(float64(n), "Bytes")
	case n < unit*unit:
		return formatUnit(float64(n)/unit, "KB")
	case n < unit*unit*unit:
		return formatUnit(float64(n)/(unit*unit), "MB")
	default:
		return formatUnit(float64(n)/(unit*unit*unit), "GB")
	}
}
