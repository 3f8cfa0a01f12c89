package progression_test

import (
	"context"
	"testing"

	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, progression.Options{})

	account, err := env.engine.Register(ctx, progression.NewAccount{
		Username:     "  ada ",
		Email:        " Ada@Example.COM ",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada", account.Username)
	assert.Equal(t, "ada@example.com", account.Email)
	assert.Equal(t, 0, account.Points)
	assert.Equal(t, 1, account.Level)
	assert.Empty(t, account.Badges)
	assert.False(t, account.IsAdmin)

	found, err := env.engine.AccountByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)

	tests := []struct {
		name    string
		in      progression.NewAccount
		wantErr error
	}{
		{"email taken", progression.NewAccount{Username: "other", Email: "ada@example.com"}, progression.ErrEmailTaken},
		{"username taken ignoring case", progression.NewAccount{Username: "ADA", Email: "ada2@example.com"}, progression.ErrUsernameTaken},
		{"invalid email", progression.NewAccount{Username: "bob", Email: "not-an-email"}, progression.ErrInvalidInput},
		{"blank username", progression.NewAccount{Username: " ", Email: "bob@example.com"}, progression.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Register(ctx, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAccountHidesDeactivated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, progression.Options{})
	a := env.register(t, "ada")

	require.NoError(t, env.store.Deactivate(ctx, a.ID))
	_, err := env.engine.Account(ctx, a.ID)
	assert.ErrorIs(t, err, progression.ErrAccountNotFound)
}

func TestErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *progression.Error
		want int
	}{
		{progression.ErrInvalidInput, 400},
		{progression.ErrInvalidCredentials, 401},
		{progression.ErrChallengeNotFound, 404},
		{progression.ErrDuplicateSubmission, 409},
		{progression.ErrChallengeLocked, 403},
		{progression.ErrInvalidDelta, 422},
		{progression.ErrUpstream, 503},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}

	wrapped := progression.ErrUpstream.WithMessage("proof storage is down")
	assert.ErrorIs(t, wrapped, progression.ErrUpstream)
	assert.NotErrorIs(t, wrapped, progression.ErrInvalidInput)
}
