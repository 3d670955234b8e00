package handleutterance

import "inventory-assistant/internal/common/validation"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["utterance", "conversationId"],
	"properties": {
		"utterance": {"type": "string", "minLength": 1, "maxLength": 4000},
		"conversationId": {"type": "string", "minLength": 1, "maxLength": 200}
	}
}`)
