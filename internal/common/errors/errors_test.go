package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name          string
		err           *StandardError
		expectRetries int
		expectCode    string
	}{
		{"classification unavailable retries", NewClassificationUnavailableError(fmt.Errorf("timeout")), 2, "CLASSIFICATION_UNAVAILABLE"},
		{"store failure retries", NewContinuationStoreError(fmt.Errorf("redis down")), 3, "CONTINUATION_STORE_FAILED"},
		{"malformed model output never retries", NewMalformedModelOutputError("not json"), 0, "MALFORMED_MODEL_OUTPUT"},
		{"invalid input never retries", NewInvalidInputError("empty utterance"), 0, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.expectCode, bpmn.Code)
			assert.Equal(t, tt.expectRetries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, tt.expectCode, vars["errorCode"])
			assert.Equal(t, tt.expectCode, vars["originalErrorCode"])
		})
	}
}

func TestAsStandard(t *testing.T) {
	wrapped := fmt.Errorf("handle: %w", NewLLMTimeoutError(nil))
	assert.Equal(t, ErrCodeLLMTimeout, AsStandard(wrapped).Code)

	plain := AsStandard(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternalError, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeClassificationUnavailable))
	assert.Equal(t, "INVENTORY", GetErrorCategory(ErrCodeInventoryUnavailable))
	assert.Equal(t, "STATE", GetErrorCategory(ErrCodeContinuationStoreFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeCatalogSearchFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternalError))
	assert.True(t, IsRetryableErrorCode(ErrCodeLLMUnavailable))
	assert.False(t, IsRetryableErrorCode(ErrCodeMalformedModelOutput))
}
