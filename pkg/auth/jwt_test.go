package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSigner_RoundTrip(t *testing.T) {
	s, err := NewSessionSigner("secret", "checkin", time.Hour)
	require.NoError(t, err)

	token, err := s.Sign("abc")
	require.NoError(t, err)

	sid, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "abc", sid)
}

func TestSessionSigner_Rejects(t *testing.T) {
	s, err := NewSessionSigner("secret", "checkin", time.Hour)
	require.NoError(t, err)
	token, err := s.Sign("abc")
	require.NoError(t, err)

	other, err := NewSessionSigner("other", "checkin", time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	_, err = s.Verify(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken, "tampered")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{SessionID: "abc"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg none")
}

func TestSessionSigner_Expired(t *testing.T) {
	s, err := NewSessionSigner("secret", "checkin", time.Minute)
	require.NoError(t, err)

	issued := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issued }
	token, err := s.Sign("abc")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewSessionSigner_RequiresSecret(t *testing.T) {
	_, err := NewSessionSigner("", "checkin", time.Hour)
	assert.Error(t, err)
}
