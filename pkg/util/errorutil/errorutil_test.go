package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := NewUnauthorized("token expired")

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrForbidden)

	wrapped := fmt.Errorf("resolve: %w", err)
	assert.ErrorIs(t, wrapped, ErrUnauthorized)
}

func TestToDomainError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})

	t.Run("domain error passes through", func(t *testing.T) {
		de := ToDomainError(NewConflict("email taken", nil))
		require.NotNil(t, de)
		assert.Equal(t, CodeConflict, de.Code)
		assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	})

	t.Run("unknown error becomes internal", func(t *testing.T) {
		cause := errors.New("connection reset")
		de := ToDomainError(cause)
		assert.Equal(t, CodeInternal, de.Code)
		assert.Equal(t, "internal server error", de.Message)
		assert.ErrorIs(t, de, cause)
	})
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(ErrUnauthorized))
	assert.False(t, IsFatal(ErrForbidden))
	assert.False(t, IsFatal(NewNotFound("user", nil)))
	assert.True(t, IsFatal(errors.New("boom")))
	assert.True(t, IsFatal(NewInternalError(errors.New("boom"))))
}

func TestInternalErrorHidesCause(t *testing.T) {
	err := NewInternalError(errors.New("pq: password authentication failed"))
	de := ToDomainError(err)
	assert.Equal(t, "internal server error", de.Message)
	assert.Contains(t, de.Error(), "pq: password authentication failed")
}
