package auth_test

import (
	"testing"

	"github.com/goliatone/go-expenses/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{
			name:     "valid password",
			password: "Sup3r$ecret",
			wantErr:  nil,
		},
		{
			name:     "empty password",
			password: "",
			wantErr:  auth.ErrNoEmptyString,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := auth.HashPassword(tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, hash)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)
		})
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	first, err := auth.HashPassword("Sup3r$ecret")
	require.NoError(t, err)

	second, err := auth.HashPassword("Sup3r$ecret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := auth.HashPassword("Sup3r$ecret")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		wantErr  error
	}{
		{
			name:     "matching password",
			password: "Sup3r$ecret",
			hash:     hash,
			wantErr:  nil,
		},
		{
			name:     "wrong password",
			password: "n0t-the-$ame",
			hash:     hash,
			wantErr:  auth.ErrMismatchedHashAndPassword,
		},
		{
			name:     "empty password",
			password: "",
			hash:     hash,
			wantErr:  auth.ErrMismatchedHashAndPassword,
		},
		{
			name:     "malformed hash",
			password: "Sup3r$ecret",
			hash:     "not-a-bcrypt-hash",
			wantErr:  auth.ErrMismatchedHashAndPassword,
		},
		{
			name:     "empty hash",
			password: "Sup3r$ecret",
			hash:     "",
			wantErr:  auth.ErrMismatchedHashAndPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ComparePasswordAndHash(tt.password, tt.hash)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRandomPasswordHash(t *testing.T) {
	first := auth.RandomPasswordHash()
	second := auth.RandomPasswordHash()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
