package models

// RequestState is the position of a chat request in the pipeline.
// A request moves strictly forward through the states; any failure jumps to
// RequestStateFailed.
type RequestState string

const (
	RequestStateEmbedding      RequestState = "embedding"
	RequestStateRetrieving     RequestState = "retrieving"
	RequestStatePromptBuilding RequestState = "prompt_building"
	RequestStateStreaming      RequestState = "streaming"
	RequestStateDone           RequestState = "done"
	RequestStateFailed         RequestState = "failed"
)

// IsTerminal reports whether no further transition can happen
func (s RequestState) IsTerminal() bool {
	return s == RequestStateDone || s == RequestStateFailed
}

// Next returns the state that follows s on success. Terminal states return themselves.
func (s RequestState) Next() RequestState {
	switch s {
	case RequestStateEmbedding:
		return RequestStateRetrieving
	case RequestStateRetrieving:
		return RequestStatePromptBuilding
	case RequestStatePromptBuilding:
		return RequestStateStreaming
	case RequestStateStreaming:
		return RequestStateDone
	}
	return s
}
