package agents

import (
	"errors"

	"inventory-assistant/internal/catalog"
	apperrors "inventory-assistant/internal/common/errors"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/validation"
	"inventory-assistant/internal/history"
	"inventory-assistant/internal/inventory"
	"inventory-assistant/internal/movement"
)

// StandardFor maps a collaborator failure onto the shared error codes.
// Unknown errors become INTERNAL_ERROR.
func StandardFor(err error) *apperrors.StandardError {
	var stdErr *apperrors.StandardError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &stdErr):
		return stdErr
	case errors.Is(err, genai.ErrLLMTimeout):
		return apperrors.NewLLMTimeoutError(err)
	case errors.Is(err, genai.ErrLLMUnavailable):
		return apperrors.NewLLMUnavailableError(err)
	case errors.Is(err, validation.ErrSchemaViolation),
		errors.Is(err, ErrNoMovement),
		errors.Is(err, ErrUnknownCommand):
		return apperrors.NewMalformedModelOutputError(err.Error())
	case errors.Is(err, inventory.ErrInventoryUnavailable):
		return apperrors.NewInventoryUnavailableError(err)
	case errors.Is(err, movement.ErrContinuationStore):
		return apperrors.NewContinuationStoreError(err)
	case errors.Is(err, history.ErrHistoryStore):
		return apperrors.NewHistoryStoreError(err)
	case errors.Is(err, catalog.ErrSearchQueryFailed),
		errors.Is(err, catalog.ErrSearchTimeout),
		errors.Is(err, catalog.ErrIndexNotFound):
		return apperrors.NewCatalogSearchFailedError(err)
	default:
		return apperrors.AsStandard(err)
	}
}

func codeOf(err error) string {
	if stdErr := StandardFor(err); stdErr != nil {
		return string(stdErr.Code)
	}
	return ""
}
