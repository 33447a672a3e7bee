package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/dom/cardclash/internal/repository/postgres"
	"github.com/dom/cardclash/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	newUser := func(name string) *domain.User {
		return &domain.User{
			ID:           uuid.New(),
			DisplayName:  name,
			PasswordHash: "hashedpassword",
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
	}

	require.NoError(t, repo.Create(ctx, newUser("testuser")))

	err := repo.Create(ctx, newUser("testuser"))
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserRepository_Lookups(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().
		WithDisplayName("lookup_user").
		Build(t, testDB.DB)

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "lookup_user", got.DisplayName)

	got, err = repo.GetByDisplayName(ctx, "lookup_user")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetByDisplayName(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	user.DisplayName = "renamed_user"
	require.NoError(t, repo.Update(ctx, user))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed_user", got.DisplayName)
}
