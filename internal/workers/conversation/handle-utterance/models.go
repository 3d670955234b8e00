package handleutterance

import (
	"time"

	"inventory-assistant/internal/assistant/orchestrator"
	apperrors "inventory-assistant/internal/common/errors"
)

type Input struct {
	Utterance      string `json:"utterance"`
	ConversationID string `json:"conversationId"`
}

// Output is written back as process variables.
type Output struct {
	Message           string    `json:"message"`
	StructuredPayload string    `json:"structuredPayload,omitempty"`
	Suspended         bool      `json:"suspended"`
	Tier              string    `json:"tier"`
	Category          string    `json:"category,omitempty"`
	ErrorCode         string    `json:"errorCode,omitempty"`
	ErrorRetryable    bool      `json:"errorRetryable,omitempty"`
	HandledAt         time.Time `json:"handledAt"`
}

func outputFrom(reply *orchestrator.Reply, at time.Time) *Output {
	return &Output{
		Message:           reply.Message,
		StructuredPayload: reply.StructuredPayload,
		Suspended:         reply.Suspended,
		Tier:              string(reply.Tier),
		Category:          string(reply.Category),
		ErrorCode:         reply.ErrorCode,
		ErrorRetryable:    apperrors.IsRetryableErrorCode(apperrors.ErrorCode(reply.ErrorCode)),
		HandledAt:         at,
	}
}
