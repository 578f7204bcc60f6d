package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCode(t *testing.T) {
	base := DatasetError("label column missing")
	wrapped := Wrap(base, "failed to prepare dataset")

	require.Error(t, wrapped)
	assert.Equal(t, CodeDatasetError, GetCode(wrapped))
	assert.Equal(t, "failed to prepare dataset: label column missing", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestWrapPlainErrorIsInternal(t *testing.T) {
	wrapped := Wrapf(os.ErrNotExist, "open %s", "train.xlsx")
	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.True(t, stderrors.Is(wrapped, os.ErrNotExist))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))
	assert.NoError(t, Wrapf(nil, "ignored %d", 1))
	assert.NoError(t, WithCode(CodeNotFound, nil))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeStorageError, fmt.Errorf("disk full"))
	assert.Equal(t, CodeStorageError, GetCode(err))
	assert.True(t, HasCode(err, CodeStorageError))
	assert.False(t, HasCode(err, CodeNotFound))
}

func TestGetCodeUnknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
	assert.False(t, IsAppError(fmt.Errorf("plain")))
	assert.True(t, IsAppError(fmt.Errorf("outer: %w", NotFound("checkpoint"))))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *AppError
		code string
	}{
		{ConfigInvalid("x"), CodeConfigInvalid},
		{InvalidInput("x"), CodeInvalidInput},
		{NotFound("x"), CodeNotFound},
		{ModelError("x"), CodeModelError},
		{StorageError("x", nil), CodeStorageError},
		{DatabaseError("x", nil), CodeDatabaseError},
		{ExternalServiceError("s3", nil), CodeExternalService},
		{InternalError("x"), CodeInternalError},
		{Newf(CodeDatasetError, "class %q", "a"), CodeDatasetError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.err.Code)
	}
	assert.Equal(t, "checkpoint not found", NotFound("checkpoint").Error())
}
