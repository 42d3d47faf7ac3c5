package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument   = 1000
	ErrCodeInvalidJSON       = 1001
	ErrCodeRequestTooLarge   = 1002
	ErrCodeInvalidID         = 1003
	ErrCodeInvalidImageID    = 1004
	ErrCodeInvalidFileFormat = 1005
	ErrCodeFileTooLarge      = 1006
	ErrCodeMissingRequired   = 1007
	ErrCodeInvalidURL        = 1008
	ErrCodeFetchFailed       = 1009

	// Domain state (2xxx)
	ErrCodeImageNotFound = 2001

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal           = 4001
	ErrCodeEncryptionFailure  = 4002
	ErrCodeBackendUnavailable = 4003
	ErrCodeConfigError        = 4004
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 404:
		return ErrCodeImageNotFound
	case 413:
		return ErrCodeFileTooLarge
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 503:
		return ErrCodeBackendUnavailable
	default:
		return 0
	}
}

// publicMessage is the only text a 5xx reply carries.
func publicMessage(errCode int) string {
	switch errCode {
	case ErrCodeEncryptionFailure:
		return "encryption error"
	case ErrCodeBackendUnavailable:
		return "backend unavailable"
	case ErrCodeConfigError:
		return "configuration error"
	default:
		return "internal error"
	}
}
