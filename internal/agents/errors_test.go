package agents

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"inventory-assistant/internal/catalog"
	apperrors "inventory-assistant/internal/common/errors"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/validation"
	"inventory-assistant/internal/history"
	"inventory-assistant/internal/inventory"
	"inventory-assistant/internal/movement"
)

func TestStandardFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorCode
	}{
		{"model timeout", genai.ErrLLMTimeout, apperrors.ErrCodeLLMTimeout},
		{"model down", fmt.Errorf("%w: status 503", genai.ErrLLMUnavailable), apperrors.ErrCodeLLMUnavailable},
		{"schema violation", fmt.Errorf("%w: quantity", validation.ErrSchemaViolation), apperrors.ErrCodeMalformedModelOutput},
		{"no movement parsed", ErrNoMovement, apperrors.ErrCodeMalformedModelOutput},
		{"unknown catalog action", ErrUnknownCommand, apperrors.ErrCodeMalformedModelOutput},
		{"inventory down", fmt.Errorf("%w: conn refused", inventory.ErrInventoryUnavailable), apperrors.ErrCodeInventoryUnavailable},
		{"continuation store", fmt.Errorf("%w: redis", movement.ErrContinuationStore), apperrors.ErrCodeContinuationStoreFailed},
		{"history store", history.ErrHistoryStore, apperrors.ErrCodeHistoryStoreFailed},
		{"search timeout", catalog.ErrSearchTimeout, apperrors.ErrCodeCatalogSearchFailed},
		{"missing index", catalog.ErrIndexNotFound, apperrors.ErrCodeCatalogSearchFailed},
		{"already standard", apperrors.NewInvalidInputError("x"), apperrors.ErrCodeInvalidInput},
		{"anything else", errors.New("boom"), apperrors.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StandardFor(tt.err).Code)
		})
	}

	assert.Nil(t, StandardFor(nil))
}
