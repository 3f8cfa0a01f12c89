package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Username string `json:"username" validate:"required,notblank,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Internal string `json:"-" validate:"omitempty,max=1"`
}

func TestValidatorFields(t *testing.T) {
	v := New()

	tests := []struct {
		name   string
		input  signup
		fields map[string]string
	}{
		{
			name:  "valid",
			input: signup{Username: "ada", Email: "ada@example.com", Password: "hunter22"},
		},
		{
			name:  "missing required uses custom text",
			input: signup{Email: "ada@example.com", Password: "hunter22"},
			fields: map[string]string{
				"username": "this field is required",
			},
		},
		{
			name:  "blank username",
			input: signup{Username: "   ", Email: "ada@example.com", Password: "hunter22"},
			fields: map[string]string{
				"username": "username must not be blank",
			},
		},
		{
			name:  "bad email and short password",
			input: signup{Username: "ada", Email: "nope", Password: "short"},
			fields: map[string]string{
				"email":    "email must be a valid email address",
				"password": "password must be at least 8 characters in length",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.input)
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.fields, v.Fields(err))
		})
	}
}

func TestFieldsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, New().Fields(errors.New("boom")))
}
