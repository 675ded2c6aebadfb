package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument        = 1000
	ErrCodeRequestTooLarge        = 1002
	ErrCodeInvalidKey             = 1004
	ErrCodeMissingRequired        = 1009
	ErrCodeMediaTypeNotAllowed    = 1015
	ErrCodeInvalidMultipartUpload = 1016

	// Domain state (2xxx)
	ErrCodeFileNotFound  = 2001
	ErrCodeRouteNotFound = 2002
	ErrCodeDuplicateFile = 2101
	ErrCodeConflict      = 2102

	// Limits (3xxx)
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeStoreFailure = 4002
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodeRouteNotFound
	case 409:
		return ErrCodeConflict
	case 413:
		return ErrCodeRequestTooLarge
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
