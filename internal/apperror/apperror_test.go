package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	errTaken := Conflict("slot already booked")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"sentinel", errTaken, KindConflict},
		{"wrapped with fmt", fmt.Errorf("claim: %w", errTaken), KindConflict},
		{"plain error", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
		{"wrap keeps cause", Wrap(errors.New("no rows"), KindNotFound, "slot not found"), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSentinelIdentity(t *testing.T) {
	errA := NotFound("booking not found")
	errB := NotFound("booking not found")

	wrapped := fmt.Errorf("load booking: %w", errA)
	assert.ErrorIs(t, wrapped, errA)
	assert.NotErrorIs(t, wrapped, errB)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsConflict(wrapped))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	assert.Equal(t, http.StatusConflict, KindConflict.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, KindForbidden.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, KindValidation.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.HTTPStatus())
	assert.Equal(t, "validation_error", KindValidation.String())
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection reset")
	assert.Equal(t, "connection reset", Wrap(cause, KindInternal, "").Error())
	assert.Equal(t, "load failed", Wrap(cause, KindInternal, "load failed").Error())
}
