package auth_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-expenses/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubUserStore backs the provider with an in memory user set
type stubUserStore struct {
	users map[string]*auth.User
	err   error
}

func (s *stubUserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, errors.New("user not found", errors.CategoryNotFound)
}

func (s *stubUserStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, errors.New("user not found", errors.CategoryNotFound)
}

func newStubStore(t *testing.T, password string) (*stubUserStore, *auth.User) {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	user := &auth.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        "test@example.com",
		PasswordHash: hash,
	}

	return &stubUserStore{
		users: map[string]*auth.User{user.ID.String(): user},
	}, user
}

func TestVerifyIdentity(t *testing.T) {
	store, user := newStubStore(t, "Sup3r$ecret")
	provider := auth.NewUserProvider(store).WithLogger(testLogger{})

	t.Run("valid credentials", func(t *testing.T) {
		identity, err := provider.VerifyIdentity(context.Background(), "test@example.com", "Sup3r$ecret")
		require.NoError(t, err)

		assert.Equal(t, user.ID.String(), identity.ID())
		assert.Equal(t, user.Name, identity.Name())
		assert.Equal(t, user.Email, identity.Email())
	})

	t.Run("wrong password", func(t *testing.T) {
		identity, err := provider.VerifyIdentity(context.Background(), "test@example.com", "wrong")
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("unknown email", func(t *testing.T) {
		identity, err := provider.VerifyIdentity(context.Background(), "nobody@example.com", "Sup3r$ecret")
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	// the email lookup is exact, case variants are different identifiers
	t.Run("email is case sensitive", func(t *testing.T) {
		identity, err := provider.VerifyIdentity(context.Background(), "TEST@example.com", "Sup3r$ecret")
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		_, unknownErr := provider.VerifyIdentity(context.Background(), "nobody@example.com", "Sup3r$ecret")
		_, wrongErr := provider.VerifyIdentity(context.Background(), "test@example.com", "wrong")
		assert.Equal(t, unknownErr, wrongErr)
	})

	t.Run("store failure is not a credential error", func(t *testing.T) {
		broken := &stubUserStore{err: errors.New("connection refused", errors.CategoryInternal)}
		failing := auth.NewUserProvider(broken).WithLogger(testLogger{})

		identity, err := failing.VerifyIdentity(context.Background(), "test@example.com", "Sup3r$ecret")
		assert.Nil(t, identity)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})
}

func TestFindIdentityByID(t *testing.T) {
	store, user := newStubStore(t, "Sup3r$ecret")
	provider := auth.NewUserProvider(store).WithLogger(testLogger{})

	t.Run("known id", func(t *testing.T) {
		identity, err := provider.FindIdentityByID(context.Background(), user.ID.String())
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), identity.ID())
	})

	t.Run("unknown id", func(t *testing.T) {
		identity, err := provider.FindIdentityByID(context.Background(), uuid.NewString())
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})
}
