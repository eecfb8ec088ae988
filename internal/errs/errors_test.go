package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesSentinelByCode(t *testing.T) {
	err := NotFound("find", "TestEntity", "foo")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidKey)
}

func TestError_IsThroughWrapping(t *testing.T) {
	inner := InvalidKey("validate id", "id is empty")
	wrapped := fmt.Errorf("save: %w", inner)

	assert.True(t, Is(wrapped, CodeInvalidKey))
	assert.Equal(t, CodeInvalidKey, CodeOf(wrapped))
}

func TestCodeOf_Plain(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestWrap_OuterCodeWins(t *testing.T) {
	cause := Corrupt("read", "t/a/attributes.yml", errors.New("bad yaml"))
	err := Wrap(CodeSaveFailed, "save or fail", cause)

	assert.Equal(t, CodeSaveFailed, CodeOf(err))
	assert.ErrorIs(t, err, ErrCorruptRecord)
	assert.ErrorIs(t, err, ErrSaveFailed)

	var inner *Error
	require.True(t, errors.As(err.Unwrap(), &inner))
	assert.Equal(t, "t/a/attributes.yml", inner.Path)
}

func TestError_Message(t *testing.T) {
	err := &Error{
		Code:   CodeValidationFailed,
		Op:     "save",
		Type:   "TestEntity",
		ID:     "foo",
		Fields: map[string][]string{"name": {"is required"}, "age": {"must be positive"}},
	}
	assert.Equal(t,
		"save: VALIDATION_FAILED (type=TestEntity, id=foo): age must be positive; name is required",
		err.Error())
}

func TestError_MessageWithCause(t *testing.T) {
	err := Unavailable("commit", errors.New("disk full"))
	assert.Equal(t, "commit: STORE_UNAVAILABLE: disk full", err.Error())
	assert.Equal(t, "disk full", errors.Unwrap(err).Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("x: %w", ErrConcurrentModification)))
	assert.False(t, IsRetryable(ErrStoreUnavailable))
	assert.False(t, IsRetryable(ErrTimeout))
}
