package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moritani/inventory-api/internal/models"
)

var testUser = &models.User{
	ID:          42,
	Username:    "alice",
	DisplayName: "Alice",
}

func TestAccessTokenRoundTrip(t *testing.T) {
	codec := NewCodec("secret", 15*time.Minute, 7*24*time.Hour)

	signed, expiresAt, err := codec.IssueAccessToken(testUser)
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	claims, err := codec.ParseAccessToken(signed)
	require.NoError(t, err)
	require.Equal(t, uint64(42), claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "Alice", claims.DisplayName)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	codec := NewCodec("secret", 15*time.Minute, 7*24*time.Hour)

	signed, _, err := codec.IssueRefreshToken(testUser)
	require.NoError(t, err)

	claims, err := codec.ParseRefreshToken(signed)
	require.NoError(t, err)
	require.Equal(t, uint64(42), claims.UserID)
}

func TestParseExpired(t *testing.T) {
	codec := NewCodec("secret", -time.Minute, -time.Minute)

	signed, _, err := codec.IssueAccessToken(testUser)
	require.NoError(t, err)

	_, err = codec.ParseAccessToken(signed)
	require.ErrorIs(t, err, ErrExpired)

	refresh, _, err := codec.IssueRefreshToken(testUser)
	require.NoError(t, err)

	_, err = codec.ParseRefreshToken(refresh)
	require.ErrorIs(t, err, ErrExpired)
}

func TestParseWrongSecret(t *testing.T) {
	issuer := NewCodec("secret-a", 15*time.Minute, time.Hour)
	verifier := NewCodec("secret-b", 15*time.Minute, time.Hour)

	signed, _, err := issuer.IssueAccessToken(testUser)
	require.NoError(t, err)

	_, err = verifier.ParseAccessToken(signed)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseMalformed(t *testing.T) {
	codec := NewCodec("secret", 15*time.Minute, time.Hour)

	_, err := codec.ParseAccessToken("not-a-token")
	require.ErrorIs(t, err, ErrMalformed)

	_, err = codec.ParseAccessToken("")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestAccessAndRefreshExpiryDiffer(t *testing.T) {
	codec := NewCodec("secret", time.Minute, time.Hour)

	_, accessExp, err := codec.IssueAccessToken(testUser)
	require.NoError(t, err)
	_, refreshExp, err := codec.IssueRefreshToken(testUser)
	require.NoError(t, err)

	require.True(t, refreshExp.After(accessExp))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("token-a")
	b := Fingerprint("token-b")

	require.Len(t, a, 64)
	require.NotEqual(t, a, b)
	require.Equal(t, a, Fingerprint("token-a"))
}
