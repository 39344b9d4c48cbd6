package streaming

import (
	"errors"
	"fmt"
	"net/http"
)

// Protocols
const (
	ProtocolData = "data"
	ProtocolText = "text"
)

// ErrInBandErrorUnsupported is returned by encoders whose wire format cannot carry errors
var ErrInBandErrorUnsupported = errors.New("protocol cannot report errors in band")

// Usage is the token accounting reported in the finish part
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Encoder writes one streamed answer. It is not safe for concurrent use.
type Encoder interface {
	// Text writes a text delta
	Text(delta string) error
	// Finish writes the closing parts of a successful stream
	Finish(reason string, usage *Usage) error
	// Error reports a failure after streaming has started
	Error(message string) error
	// Started reports whether anything has been written to the client
	Started() bool
}

// NewEncoder returns the encoder for protocol writing to w
func NewEncoder(protocol string, w http.ResponseWriter, messageID string) (Encoder, error) {
	base := writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		base.flusher = f
	}

	switch protocol {
	case ProtocolData, "":
		return &dataEncoder{writer: base, messageID: messageID}, nil
	case ProtocolText:
		return &textEncoder{writer: base}, nil
	default:
		return nil, fmt.Errorf("unknown stream protocol %q", protocol)
	}
}

// writer holds the state shared by all encoders
type writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (w *writer) Started() bool {
	return w.started
}

// start writes the status line and headers once
func (w *writer) start(header func(http.Header)) {
	if w.started {
		return
	}
	h := w.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	if header != nil {
		header(h)
	}
	w.w.WriteHeader(http.StatusOK)
	w.started = true
}

func (w *writer) write(p []byte) error {
	if _, err := w.w.Write(p); err != nil {
		return fmt.Errorf("failed to write stream part: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
