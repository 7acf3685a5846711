package apperrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openclaw/openclaw/internal/apperrors"
)

func TestWrapPreservesUnderlyingErrorForUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := apperrors.Wrap(apperrors.KindTransientInfra, "query failed", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestIsAndKindOfOnlyMatchAppErrors(t *testing.T) {
	err := apperrors.New(apperrors.KindNotFound, "task not found")

	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.False(t, apperrors.Is(err, apperrors.KindValidation))

	kind, ok := apperrors.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, apperrors.KindNotFound, kind)

	_, ok = apperrors.KindOf(fmt.Errorf("plain error"))
	assert.False(t, ok)
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[apperrors.Kind]int{
		apperrors.KindNotFound:          404,
		apperrors.KindInvalidTransition: 409,
		apperrors.KindDependencyBlocked: 409,
		apperrors.KindAlreadyResolved:   409,
		apperrors.KindDuplicateKey:      409,
		apperrors.KindValidation:        422,
		apperrors.KindBudgetExceeded:    429,
		apperrors.KindSignatureRejected: 403,
		apperrors.KindTransientInfra:    500,
	}
	for kind, want := range cases {
		assert.Equal(t, want, apperrors.HTTPStatus(kind), "kind=%s", kind)
	}
}

func TestNotFoundFormatsEntityAndID(t *testing.T) {
	err := apperrors.NotFound("task", "42")
	assert.Equal(t, apperrors.KindNotFound, err.Kind)
	assert.Contains(t, err.Message, "task")
	assert.Contains(t, err.Message, "42")
}
