package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal        ErrorCode = "COMMON_001"
	ErrCodeBadRequest      ErrorCode = "COMMON_002"
	ErrCodeNotFound        ErrorCode = "COMMON_005"
	ErrCodeConflict        ErrorCode = "COMMON_006"
	ErrCodeTimeout         ErrorCode = "COMMON_009"
	ErrCodeValidation      ErrorCode = "COMMON_010"
	ErrCodeSerialization   ErrorCode = "COMMON_011"
	ErrCodeCacheError      ErrorCode = "COMMON_013"
	ErrCodeMessageQueue    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled ErrorCode = "COMMON_015"
	ErrCodeNotImplemented  ErrorCode = "COMMON_016"
)

// Structure model error codes. These indicate invariant violations by the
// caller and are never swallowed.
const (
	ErrCodeInvalidArgument ErrorCode = "MOL_001"
	ErrCodeIndexOutOfRange ErrorCode = "MOL_002"
	ErrCodeResidueAttached ErrorCode = "MOL_003"
	ErrCodeChainNotFound   ErrorCode = "MOL_004"
)

// Geometry pipeline error codes. The ribbon orchestrator converts these into a
// failed build result instead of propagating them.
const (
	ErrCodeUnsupportedConfiguration ErrorCode = "GEO_001"
	ErrCodeBuildFailure             ErrorCode = "GEO_002"
	ErrCodeDegenerateGeometry       ErrorCode = "GEO_003"
)

// Short aliases used at call sites.
const (
	CodeOK                = ErrorCode("OK")
	CodeUnknown           = ErrorCode("UNKNOWN")
	CodeInternal          = ErrCodeInternal
	CodeInvalidParam      = ErrCodeBadRequest
	CodeNotFound          = ErrCodeNotFound
	CodeConflict          = ErrCodeConflict
	CodeNotImplemented    = ErrCodeNotImplemented
	CodeCacheError        = ErrCodeCacheError
	CodeMessageQueueError = ErrCodeMessageQueue
)

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:        "internal error",
	ErrCodeBadRequest:      "bad request",
	ErrCodeNotFound:        "resource not found",
	ErrCodeConflict:        "resource conflict",
	ErrCodeTimeout:         "operation timed out",
	ErrCodeValidation:      "validation failed",
	ErrCodeSerialization:   "serialization failed",
	ErrCodeCacheError:      "cache error",
	ErrCodeMessageQueue:    "message queue error",
	ErrCodeFeatureDisabled: "feature disabled",
	ErrCodeNotImplemented:  "not implemented",

	ErrCodeInvalidArgument: "invalid argument",
	ErrCodeIndexOutOfRange: "index out of range",
	ErrCodeResidueAttached: "residue already attached to a chain",
	ErrCodeChainNotFound:   "chain not found",

	ErrCodeUnsupportedConfiguration: "unsupported geometry configuration",
	ErrCodeBuildFailure:             "geometry build failed",
	ErrCodeDegenerateGeometry:       "degenerate control point sequence",
}

// DefaultMessage returns the registered default message for code, or a
// generic fallback.
func DefaultMessage(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// Module returns the module prefix of a code ("MOL", "GEO", "COMMON").
func (c ErrorCode) Module() string {
	s := string(c)
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return s
}

// IsGeometry reports whether the code belongs to the geometry pipeline.
func (c ErrorCode) IsGeometry() bool {
	return c.Module() == "GEO"
}

// IsStructure reports whether the code belongs to the structure model.
func (c ErrorCode) IsStructure() bool {
	return c.Module() == "MOL"
}
