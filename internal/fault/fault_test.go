package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassOf_Fault(t *testing.T) {
	err := Rejectedf(ReasonUnitsUnavailable, "seats %v taken", []string{"1A"})

	assert.Equal(t, ClassRejected, ClassOf(err))
	assert.Equal(t, ReasonUnitsUnavailable, ReasonOf(err))
	assert.True(t, IsClass(err, ClassRejected))
	assert.False(t, IsClass(err, ClassTransient))
}

func TestClassOf_Wrapped(t *testing.T) {
	inner := Transientf(ReasonSearchFailed, "upstream 503")
	wrapped := fmt.Errorf("search trips: %w", inner)

	assert.Equal(t, ClassTransient, ClassOf(wrapped))
	assert.Equal(t, ReasonSearchFailed, ReasonOf(wrapped))
}

func TestClassOf_PlainError(t *testing.T) {
	assert.Equal(t, Class(""), ClassOf(errors.New("boom")))
	assert.Equal(t, "", ReasonOf(errors.New("boom")))
	assert.Equal(t, Class(""), ClassOf(nil))
}

func TestWithCause_Unwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transientf(ReasonGatewayError, "order create failed").WithCause(cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAmbiguousf_AlwaysFlagsFunds(t *testing.T) {
	err := Ambiguousf("confirm timed out for hold %s", "h-1")

	assert.True(t, err.FundsMayBeCaptured)
	assert.Equal(t, ClassConfirmationAmbiguous, err.Class)
	assert.Equal(t, ReasonConfirmationFailed, err.Reason)
}

func TestWithUnits_CarriesContestedSeats(t *testing.T) {
	err := Rejectedf(ReasonUnitsUnavailable, "lost race").WithUnits([]string{"2B", "2C"})

	var fe *Error
	require.True(t, errors.As(error(err), &fe))
	assert.Equal(t, []string{"2B", "2C"}, fe.Units)
}
