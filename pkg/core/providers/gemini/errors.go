package gemini

import (
	"errors"
	"net/http"

	"google.golang.org/genai"

	"github.com/vango-go/vai-wingman/pkg/core"
)

// mapError converts SDK errors into core.Error. Non-API errors (transport,
// context) pass through wrapped as provider errors.
func mapError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return core.NewProviderError("gemini", err)
		}
		apiErr = *ptr
	}

	var errType core.ErrorType
	switch apiErr.Status {
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION", "NOT_FOUND":
		errType = core.ErrInvalidRequest
	case "UNAUTHENTICATED":
		errType = core.ErrAuthentication
	case "PERMISSION_DENIED":
		errType = core.ErrPermission
	case "RESOURCE_EXHAUSTED":
		errType = core.ErrRateLimit
	case "INTERNAL":
		errType = core.ErrAPI
	case "UNAVAILABLE":
		errType = core.ErrOverloaded
	default:
		errType = core.ErrProvider
	}

	// HTTP status wins where it is unambiguous.
	switch apiErr.Code {
	case http.StatusTooManyRequests:
		errType = core.ErrRateLimit
	case http.StatusServiceUnavailable:
		errType = core.ErrOverloaded
	case http.StatusUnauthorized, http.StatusForbidden:
		errType = core.ErrAuthentication
	}

	return &core.Error{
		Type:          errType,
		Message:       apiErr.Message,
		Code:          apiErr.Status,
		ProviderError: apiErr,
	}
}
