package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("load roster: %w", Clone(ErrValidation, "duplicate period 3"))
	appErr := FromError(wrapped)

	assert.Equal(t, ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "duplicate period 3", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(stdErrors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrConfiguration, "unknown rank \"JUNIOR\"")
	assert.Equal(t, "configuration error", ErrConfiguration.Message)
	assert.Equal(t, "unknown rank \"JUNIOR\"", clone.Error())
}

func TestWrapUnwraps(t *testing.T) {
	cause := stdErrors.New("tx failed")
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed to persist allocation")
	assert.True(t, stdErrors.Is(err, cause))
	assert.Equal(t, "failed to persist allocation: tx failed", err.Error())
}
