package service

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/eatinformed/internal/auth"
	"github.com/vbonduro/eatinformed/internal/db"
	"github.com/vbonduro/eatinformed/internal/store"
)

func newAccountService(t *testing.T) *AccountService {
	t.Helper()
	database, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, database.Close()) })

	tokens := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)
	return NewAccountService(store.NewUserStore(database), tokens, slog.Default())
}

func TestAccountServiceSignUp(t *testing.T) {
	svc := newAccountService(t)

	token, err := svc.SignUp(context.Background(), "  Ann@Example.com ", "secret1")
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.NotZero(t, claims.UserID)
}

func TestAccountServiceSignUp_Validation(t *testing.T) {
	svc := newAccountService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "", "secret1")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = svc.SignUp(ctx, "ann@example.com", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = svc.SignUp(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.SignUp(ctx, "ann@example.com", "12345")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.SignUp(ctx, "ann@example.com", strings.Repeat("a", auth.MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = svc.SignUp(ctx, "ann@example.com", strings.Repeat("a", auth.MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestAccountServiceSignUp_DuplicateEmail(t *testing.T) {
	svc := newAccountService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, "ANN@example.com", "secret2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAccountServiceLogIn(t *testing.T) {
	svc := newAccountService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)

	token, err := svc.LogIn(ctx, "Ann@example.com", "secret1")
	require.NoError(t, err)
	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", claims.Email)

	_, err = svc.LogIn(ctx, "ann@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.LogIn(ctx, "bob@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.LogIn(ctx, "ann@example.com", strings.Repeat("a", auth.MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccountServiceVerify_Invalid(t *testing.T) {
	svc := newAccountService(t)

	_, err := svc.Verify("garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
