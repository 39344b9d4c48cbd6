package models

// RetrievedChunk is a stored unit of source text returned by the similarity
// search. It is read-only to this service and lives for a single request.
type RetrievedChunk struct {
	URL         string   `json:"url" db:"url"`
	DateUpdated string   `json:"date_updated" db:"date_updated"` // ISO date as stored
	Content     string   `json:"content" db:"content"`
	Similarity  *float64 `json:"similarity,omitempty" db:"similarity"`
}

// Embedding is the vector produced for one piece of text together with the
// provider metadata that came back with it
type Embedding struct {
	Vector       []float64 `json:"embedding"`
	Model        string    `json:"model"`
	PromptTokens int       `json:"prompt_tokens"`
}

// Dimensions returns the length of the vector
func (e *Embedding) Dimensions() int {
	if e == nil {
		return 0
	}
	return len(e.Vector)
}
