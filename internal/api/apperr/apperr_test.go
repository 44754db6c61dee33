package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindValidationFailed, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindQueueDisabled, http.StatusServiceUnavailable},
		{KindQueueUnavailable, http.StatusServiceUnavailable},
		{KindJobSubmissionFailed, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}

func TestError_PreservesCause(t *testing.T) {
	cause := errors.New("amqp: connection reset")
	err := fmt.Errorf("dispatch: %w", JobSubmissionFailed("CATALOG_SYNC_DISPATCH_FAILED", cause))

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "CATALOG_SYNC_DISPATCH_FAILED", appErr.Code)
	assert.Equal(t, "Failed to submit job", appErr.Message)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "amqp: connection reset")
	assert.True(t, IsKind(err, KindJobSubmissionFailed))
	assert.False(t, IsKind(err, KindQueueUnavailable))
}

func TestQueueErrorsAreDistinguishable(t *testing.T) {
	disabled := QueueDisabled("catalog", nil)
	unavailable := QueueUnavailable("catalog", errors.New("dial tcp: refused"))

	assert.NotEqual(t, disabled.Code, unavailable.Code)
	assert.NotEqual(t, disabled.Message, unavailable.Message)
	assert.NotContains(t, unavailable.Message, "refused")
}

func TestAs_PlainError(t *testing.T) {
	appErr, ok := As(errors.New("boom"))
	assert.False(t, ok)
	assert.Nil(t, appErr)
}
