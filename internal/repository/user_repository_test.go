package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wedding-planner/internal/database/dbtest"
	"github.com/iliyamo/wedding-planner/internal/model"
)

func TestUserRepo_CreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(dbtest.New(t))

	u, err := repo.Create(ctx, RegisterInput{Name: " Priya ", Email: " Priya@Example.COM ", Password: "secret1"}, 4)
	require.NoError(t, err)
	assert.Equal(t, "Priya", u.Name)
	assert.Equal(t, "priya@example.com", u.Email)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	_, err = repo.Create(ctx, RegisterInput{Name: "Other", Email: "priya@example.com", Password: "secret2"}, 4)
	assert.ErrorIs(t, err, ErrEmailExists)

	got, err := repo.Authenticate(ctx, "PRIYA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repo.Authenticate(ctx, "priya@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = repo.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserRepo_CreateValidation(t *testing.T) {
	repo := NewUserRepo(dbtest.New(t))

	cases := map[string]struct {
		in    RegisterInput
		field string
	}{
		"missing name":   {RegisterInput{Email: "a@example.com", Password: "secret1"}, "name"},
		"missing email":  {RegisterInput{Name: "A", Password: "secret1"}, "email"},
		"bad email":      {RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1"}, "email"},
		"short password": {RegisterInput{Name: "A", Email: "a@example.com", Password: "12345"}, "password"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Create(context.Background(), tc.in, 4)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestUserRepo_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewUserRepo(f.db)

	u, err := repo.UpdateProfile(ctx, f.alice, ProfilePatch{
		Phone:       ptr("+1 555 0100"),
		WeddingDate: ptr("2027-06-19"),
		PartnerName: ptr("Sam"),
	})
	require.NoError(t, err)
	assert.Equal(t, "+1 555 0100", u.Phone)
	require.NotNil(t, u.WeddingDate)
	assert.Equal(t, time.Date(2027, 6, 19, 0, 0, 0, 0, time.UTC), *u.WeddingDate)
	assert.Equal(t, "Test alice@example.com", u.Name, "omitted fields are kept")

	stored, err := repo.GetByID(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, "Sam", stored.PartnerName)
	assert.True(t, u.WeddingDate.Equal(*stored.WeddingDate))

	u, err = repo.UpdateProfile(ctx, f.alice, ProfilePatch{WeddingDate: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, u.WeddingDate)

	_, err = repo.UpdateProfile(ctx, f.alice, ProfilePatch{Email: ptr("bob@example.com")})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = repo.UpdateProfile(ctx, "missing", ProfilePatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_ChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewUserRepo(f.db)

	err := repo.ChangePassword(ctx, f.alice, ChangePasswordInput{CurrentPassword: "wrong1", NewPassword: "newpass1"}, 4)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "currentPassword", ve.Field)

	require.NoError(t, repo.ChangePassword(ctx, f.alice, ChangePasswordInput{CurrentPassword: "secret1", NewPassword: "newpass1"}, 4))
	_, err = repo.Authenticate(ctx, "alice@example.com", "newpass1")
	assert.NoError(t, err)
}

func TestUserRepo_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	users := NewUserRepo(f.db)
	guests := NewGuestRepo(f.db)
	expenses := NewExpenseRepo(f.db)
	reqs := NewRequirementRepo(f.db)
	tokens := NewTokenRepo(f.db)

	_, err := guests.Create(ctx, f.alice, GuestInput{Name: ptr("Asha")})
	require.NoError(t, err)
	e, err := expenses.Create(ctx, f.alice, NewExpenseID(), ExpenseInput{Category: ptr("Venue")}, []model.Document{
		{ID: newID(), Filename: "a-doc.pdf", OriginalName: "doc.pdf", Path: "/uploads/documents/a-doc.pdf", Size: 3, MimeType: "application/pdf", UploadedAt: nowFunc()},
	})
	require.NoError(t, err)
	_, err = expenses.AddItem(ctx, f.alice, e.ID, ItemInput{Name: ptr("Deposit"), Cost: ptr(10.0)})
	require.NoError(t, err)
	_, err = reqs.Create(ctx, f.alice, RequirementInput{Item: ptr("Book DJ"), LinkedExpense: ptr(e.ID)})
	require.NoError(t, err)
	require.NoError(t, tokens.StoreRefresh(ctx, f.alice, "hash-a", time.Now().Add(time.Hour)))
	_, err = guests.Create(ctx, f.bob, GuestInput{Name: ptr("Bob's guest")})
	require.NoError(t, err)

	files, err := users.Delete(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-doc.pdf"}, files)

	ok, err := users.Exists(ctx, f.alice)
	require.NoError(t, err)
	assert.False(t, ok)

	// bob owns only one guest, so everything else must be gone
	for _, table := range []string{"expenses", "expense_items", "expense_documents", "requirements", "refresh_tokens"} {
		var n int
		require.NoError(t, f.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
	bobGuests, err := guests.List(ctx, f.bob)
	require.NoError(t, err)
	assert.Len(t, bobGuests, 1)

	_, err = users.Delete(ctx, f.alice)
	assert.ErrorIs(t, err, ErrNotFound)
}
