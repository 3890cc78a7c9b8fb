package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasksync/tasksync/pkg/models"
)

func newTestIssuer(t *testing.T, ttl time.Duration) *Issuer {
	t.Helper()
	return NewIssuer([]byte("test-signing-key"), "tasksync-test", "tasksync-test", ttl)
}

func newTestUser() *models.User {
	return &models.User{
		ID:    models.NewUserID(),
		Email: "alice@example.com",
	}
}

func TestIssueAndValidate(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	user := newTestUser()

	token, expiration, err := issuer.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.WithinDuration(t, time.Now().Add(time.Hour), expiration, time.Minute)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.WithinDuration(t, expiration, claims.ExpiresAt, time.Second)
}

func TestValidateExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t, -time.Minute)
	token, _, err := issuer.Issue(newTestUser())
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateWrongKey(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	token, _, err := issuer.Issue(newTestUser())
	require.NoError(t, err)

	other := NewIssuer([]byte("different-key"), "tasksync-test", "tasksync-test", time.Hour)
	_, err = other.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateIssuerMismatch(t *testing.T) {
	issuer := NewIssuer([]byte("test-signing-key"), "someone-else", "tasksync-test", time.Hour)
	token, _, err := issuer.Issue(newTestUser())
	require.NoError(t, err)

	verifier := newTestIssuer(t, time.Hour)
	_, err = verifier.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAudienceMismatch(t *testing.T) {
	issuer := NewIssuer([]byte("test-signing-key"), "tasksync-test", "someone-else", time.Hour)
	token, _, err := issuer.Issue(newTestUser())
	require.NoError(t, err)

	verifier := newTestIssuer(t, time.Hour)
	_, err = verifier.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateMalformedToken(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := issuer.Validate(token)
		require.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-password")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret-password", hash)

	assert.True(t, VerifyPassword(hash, "s3cret-password"))
	assert.False(t, VerifyPassword(hash, "wrong-password"))
	assert.False(t, VerifyPassword("not-a-hash", "s3cret-password"))
}
