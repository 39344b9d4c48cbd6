package rag

import (
	"strings"

	"github.com/upb/butterfly-chat/backend/models"
)

// chunkSeparator separates rendered chunks inside the context block
const chunkSeparator = "\n\n"

// FormatChunk renders one chunk with its source and last-updated date
func FormatChunk(chunk models.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("Source: ")
	b.WriteString(chunk.URL)
	b.WriteString(",\nDate Updated: ")
	b.WriteString(chunk.DateUpdated)
	b.WriteString("\nContent: ")
	b.WriteString(strings.TrimSpace(chunk.Content))
	return b.String()
}

// FormatContext renders chunks in retrieval order. No chunks yields an empty
// string, so the prompt keeps its context markers with nothing between them.
func FormatContext(chunks []models.RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = FormatChunk(chunk)
	}
	return strings.Join(parts, chunkSeparator)
}
