package prompt

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/upb/butterfly-chat/backend/models"
)

// perMessageOverhead approximates the role and separator tokens the chat
// format adds around every message
const perMessageOverhead = 4

type encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// TokenCounter estimates prompt sizes for logging. When no encoding is
// available for the model it falls back to roughly 4 characters per token.
type TokenCounter struct {
	enc encoder
}

// NewTokenCounter loads the tiktoken encoding for model
func NewTokenCounter(model string, logger *zap.Logger) *TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		logger.Warn("no tokenizer for model, using character estimate",
			zap.String("model", model),
			zap.Error(err))
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

// Count returns the number of tokens in text
func (c *TokenCounter) Count(text string) int {
	if c == nil || c.enc == nil {
		return len(text) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountMessages returns the estimated prompt tokens of a conversation
func (c *TokenCounter) CountMessages(messages []models.Message) int {
	total := 0
	for _, msg := range messages {
		total += perMessageOverhead + c.Count(msg.Content)
	}
	return total
}
