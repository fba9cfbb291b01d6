package error

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	assert.ErrorIs(t, NewInvalidReferenceError(1001), ErrInvalidReference)
	assert.ErrorIs(t, NewValidationError("scopes", "frameId", "missing"), ErrValidation)
	assert.ErrorIs(t, NewSessionStateError("threads", "Init"), ErrSessionState)

	cause := errors.New("cannot access memory at address 0x0")
	readErr := NewBackendReadError("*p", cause)
	assert.ErrorIs(t, readErr, ErrBackendRead)
	assert.ErrorIs(t, readErr, cause)

	wrapped := fmt.Errorf("variables: %w", NewInvalidReferenceError(7))
	var ref *InvalidReferenceError
	assert.True(t, errors.As(wrapped, &ref))
	assert.Equal(t, 7, ref.Handle)
}

func TestValidationErrorMessage(t *testing.T) {
	assert.Equal(t, "invalid arguments: scopes.frameId: missing", NewValidationError("scopes", "frameId", "missing").Error())
	assert.Equal(t, "invalid arguments: launch: malformed", NewValidationError("launch", "", "malformed").Error())
}
