package auth_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-expenses/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionObjectGetters(t *testing.T) {
	issuedAt := time.Now().Add(-time.Minute)
	expiration := issuedAt.Add(time.Hour)

	session := &auth.SessionObject{
		UserID:         "9be5b7df-4e18-4d08-a896-36e33b0fd87b",
		Issuer:         "test-issuer",
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiration,
	}

	assert.Equal(t, "9be5b7df-4e18-4d08-a896-36e33b0fd87b", session.GetUserID())
	assert.Equal(t, "test-issuer", session.GetIssuer())
	assert.Equal(t, &issuedAt, session.GetIssuedAt())
	assert.Equal(t, &expiration, session.GetExpiration())

	id, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, uuid.MustParse("9be5b7df-4e18-4d08-a896-36e33b0fd87b"), id)
}

func TestSessionObjectGetUserUUIDInvalid(t *testing.T) {
	session := &auth.SessionObject{UserID: "not-a-uuid"}

	_, err := session.GetUserUUID()
	assert.Error(t, err)
}

func TestSessionObjectString(t *testing.T) {
	issuedAt := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	session := auth.SessionObject{
		UserID:   "user-1",
		Issuer:   "test-issuer",
		IssuedAt: &issuedAt,
	}

	out := session.String()
	assert.Contains(t, out, "user=user-1")
	assert.Contains(t, out, "iss=test-issuer")

	empty := auth.SessionObject{}
	assert.Contains(t, empty.String(), "iat=<nil>")
}
