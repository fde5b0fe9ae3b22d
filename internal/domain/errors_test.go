package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_UnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("failed to load tenant: %w", NotFound("Tenant not found"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestValidation_CollectsFirstErrorPerField(t *testing.T) {
	var v Validation
	require.NoError(t, v.Err())

	v.Check(false, "name", "The name field is required.")
	v.Add("name", "second message")
	v.Check(true, "email", "never recorded")

	err := v.Err()
	require.Error(t, err)
	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, KindValidationFailed, de.Kind)
	assert.Equal(t, map[string]string{"name": "The name field is required."}, de.Fields)
	assert.False(t, v.Has("email"))
}

func TestExternalProvider_Unwraps(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := ExternalProvider(cause, "square customer create failed")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "external_provider_error", KindOf(err).String())
}
