// Package rag renders retrieved chunks into the context block that is
// injected into the system prompt.
//
// Every chunk keeps its provenance (source URL and last-updated date) so the
// model can cite sources and tell the user how fresh the information is.
package rag
