package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleSystem, true},
		{RoleUser, true},
		{RoleAssistant, true},
		{Role("tool"), false},
		{Role(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.IsValid())
		})
	}
}

func TestLastMessage(t *testing.T) {
	_, ok := LastMessage(nil)
	assert.False(t, ok)

	msgs := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "What is a monarch butterfly?"},
	}
	last, ok := LastMessage(msgs)
	require.True(t, ok)
	assert.Equal(t, "What is a monarch butterfly?", last.Content)
	assert.Equal(t, RoleUser, last.Role)
}

func TestMessage_IgnoresUnknownFields(t *testing.T) {
	// Chat clients send extra fields such as id and createdAt.
	raw := `{"id":"m1","role":"user","content":"hello","createdAt":"2024-01-01T00:00:00Z"}`

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, Message{Role: RoleUser, Content: "hello"}, msg)
}

func TestRetrievedChunk_JSON(t *testing.T) {
	raw := `[{"url":"a.com","date_updated":"2023-01-01","content":"Monarchs migrate...","similarity":0.82}]`

	var chunks []RetrievedChunk
	require.NoError(t, json.Unmarshal([]byte(raw), &chunks))
	require.Len(t, chunks, 1)
	assert.Equal(t, "a.com", chunks[0].URL)
	assert.Equal(t, "2023-01-01", chunks[0].DateUpdated)
	require.NotNil(t, chunks[0].Similarity)
	assert.InDelta(t, 0.82, *chunks[0].Similarity, 1e-9)
}

func TestEmbedding_Dimensions(t *testing.T) {
	var nilEmbedding *Embedding
	assert.Equal(t, 0, nilEmbedding.Dimensions())
	assert.Equal(t, 3, (&Embedding{Vector: []float64{0.1, 0.2, 0.3}}).Dimensions())
}

func TestRequestState_Next(t *testing.T) {
	state := RequestStateEmbedding
	var visited []RequestState
	for !state.IsTerminal() {
		visited = append(visited, state)
		state = state.Next()
	}

	assert.Equal(t, []RequestState{
		RequestStateEmbedding,
		RequestStateRetrieving,
		RequestStatePromptBuilding,
		RequestStateStreaming,
	}, visited)
	assert.Equal(t, RequestStateDone, state)
	assert.Equal(t, RequestStateFailed, RequestStateFailed.Next())
}
