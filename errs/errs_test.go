package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageWithAndWithoutCause(t *testing.T) {
	plain := New(KindArtifactNotFound, "no such artifact")
	assert.Contains(t, plain.Error(), "ArtifactNotFound")
	assert.Contains(t, plain.Error(), "no such artifact")

	wrapped := Wrap(KindProviderError, "put failed", fmt.Errorf("timeout"))
	assert.Contains(t, wrapped.Error(), "timeout")
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	wrapped := Wrap(KindProviderError, "put failed", cause)
	assert.Same(t, cause, errors.Unwrap(wrapped))
}

func TestIsMatchesOnKindOnly(t *testing.T) {
	err := Wrap(KindAccessDenied, "specific message", fmt.Errorf("cause"))
	assert.True(t, errors.Is(err, New(KindAccessDenied, "different message")))
	assert.False(t, errors.Is(err, New(KindArtifactNotFound, "")))
}

func TestOfAndIsKind(t *testing.T) {
	err := New(KindUploadNotOpen, "upload closed")
	kind, ok := Of(err)
	assert.True(t, ok)
	assert.Equal(t, KindUploadNotOpen, kind)
	assert.True(t, IsKind(err, KindUploadNotOpen))
	assert.False(t, IsKind(err, KindPartTooSmall))

	_, ok = Of(fmt.Errorf("plain error"))
	assert.False(t, ok)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(KindProviderError, "")))
	assert.False(t, Retryable(New(KindAccessDenied, "")))
	assert.False(t, Retryable(fmt.Errorf("plain")))
}

func TestOfFindsWrappedErrorThroughFmtErrorf(t *testing.T) {
	inner := New(KindSessionError, "expired")
	outer := fmt.Errorf("context: %w", inner)
	kind, ok := Of(outer)
	assert.True(t, ok)
	assert.Equal(t, KindSessionError, kind)
}
