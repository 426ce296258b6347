package prompt

import (
	"strconv"
	"strings"

	"github.com/yungbote/unravel-backend/internal/retrieval"
)

const (
	NoContextRefusal  = "I Unravel if there are Documents, Upload a document first"
	NotFoundReply     = "Not found in document"
	NoDocumentsMarker = "NO DOCUMENTS ATTACHED/PROVIDED."
	blockSeparator    = "\n\n---\n\n"
)

// System is the grounding policy sent with every generation.
const System = `You are a helpful AI assistant that answers questions based ONLY on the provided document context.

Rules:
1. Only use information from the provided context to answer questions.
2. If there are no documents attached yet (no context provided), respond with exactly: "` + NoContextRefusal + `".
3. If there are documents (context is provided) but the user's prompt is not related to the documents or the answer cannot be found in the context, respond with: "` + NotFoundReply + `".
4. Do NOT include citations or source references in your response. The sources are displayed separately in the UI.
5. Be concise but thorough.
6. Format your responses in a clear, readable way using markdown when appropriate.`

type Prompt struct {
	System string
	User   string
}

// Build composes the prompt for a question and its retrieved passages.
func Build(query string, passages []retrieval.Passage) Prompt {
	if len(passages) == 0 {
		return Prompt{
			System: System,
			User:   NoDocumentsMarker + "\n\nUSER QUESTION:\n" + query,
		}
	}

	blocks := make([]string, 0, len(passages))
	for i, p := range passages {
		blocks = append(blocks, block(i, p))
	}

	var b strings.Builder
	b.WriteString("Based on the following document context, please answer the user's question.\n\n")
	b.WriteString("DOCUMENT CONTEXT:\n")
	b.WriteString(strings.Join(blocks, blockSeparator))
	b.WriteString("\n\nUSER QUESTION:\n")
	b.WriteString(query)
	return Prompt{System: System, User: b.String()}
}

func block(i int, p retrieval.Passage) string {
	label := strings.TrimSpace(p.Metadata.ResolvedFileName())
	if label == "" {
		label = "Document " + strconv.Itoa(i+1)
	}
	if page := strings.TrimSpace(p.Metadata.PageNumber); page != "" {
		label += " (Page " + page + ")"
	}
	return "[" + label + "]\n" + p.Content
}
