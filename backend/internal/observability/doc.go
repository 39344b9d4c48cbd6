// Package observability builds the structured zap logger shared by every
// component of the chat service and attaches request-scoped fields to it.
package observability
