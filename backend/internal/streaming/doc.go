// Package streaming writes chat completions to HTTP clients incrementally.
//
// Two wire formats are supported:
//   - data: the AI SDK data stream protocol (prefixed, newline-delimited parts)
//   - text: raw UTF-8 text deltas
//
// Encoders write response headers lazily on the first part, so a request that
// fails before anything was streamed can still be answered with a regular
// HTTP error status.
package streaming
