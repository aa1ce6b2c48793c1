package validation

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

type sample struct {
	AgentID *int64  `validate:"omitempty,gt=0"`
	Amount  float64 `json:"total" validate:"gte=0,lt=1e10,cents"`
	Email   string  `validate:"required,email"`
}

func TestStructRendersFieldErrors(t *testing.T) {
	negative := int64(-3)
	err := Struct(sample{AgentID: &negative, Amount: 1e15})

	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, http.StatusUnprocessableEntity, de.HTTPStatus)
	assert.Equal(t, Message, de.Message)
	assert.Equal(t, []string{"The agent id must be greater than 0."}, de.Details["agent_id"])
	assert.Equal(t, []string{"The total must be less than 10000000000."}, de.Details["total"])
	assert.Equal(t, []string{"The email field is required."}, de.Details["email"])
}

func TestCents(t *testing.T) {
	tests := map[string]struct {
		amount float64
		ok     bool
	}{
		"whole":          {500, true},
		"one decimal":    {0.5, true},
		"two decimals":   {1234.56, true},
		"three decimals": {10.005, false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := Struct(sample{Amount: tc.amount, Email: "a@b.test"})
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, []string{"The total may not have more than 2 decimal places."}, apperrors.ToDomainError(err).Details["total"])
		})
	}
}

func TestStructRejectsNonStruct(t *testing.T) {
	var de *apperrors.DomainError
	require.True(t, errors.As(Struct(42), &de))
	assert.Equal(t, apperrors.CodeInternal, de.Code)
}

func TestSnake(t *testing.T) {
	assert.Equal(t, "agent_id", snake("AgentID"))
	assert.Equal(t, "patient_name", snake("PatientName"))
	assert.Equal(t, "account_type_id", snake("AccountTypeID"))
	assert.Equal(t, "email", snake("Email"))
}
