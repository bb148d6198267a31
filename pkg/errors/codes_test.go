package errors

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "COMMON_001", ErrCodeInternal.String())
	assert.Equal(t, "GEO_002", ErrCodeBuildFailure.String())
}

func TestDefaultMessage(t *testing.T) {
	assert.Equal(t, "internal error", DefaultMessage(ErrCodeInternal))
	assert.Equal(t, "index out of range", DefaultMessage(ErrCodeIndexOutOfRange))
	assert.Equal(t, "unknown error", DefaultMessage(ErrorCode("NOPE_001")))
}

func TestErrorCode_Module(t *testing.T) {
	assert.Equal(t, "GEO", ErrCodeUnsupportedConfiguration.Module())
	assert.Equal(t, "MOL", ErrCodeInvalidArgument.Module())
	assert.Equal(t, "COMMON", ErrCodeCacheError.Module())
	assert.Equal(t, "OK", CodeOK.Module())

	assert.True(t, ErrCodeBuildFailure.IsGeometry())
	assert.False(t, ErrCodeBuildFailure.IsStructure())
	assert.True(t, ErrCodeIndexOutOfRange.IsStructure())
}

func TestErrorCodeFormat(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z]+_\d{3}$`)
	for code := range ErrorCodeMessage {
		assert.Regexp(t, re, code.String(), "malformed code %q", code)
	}
}
