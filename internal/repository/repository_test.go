package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wedding-planner/internal/database/dbtest"
)

func ptr[T any](v T) *T { return &v }

// newTestUser registers an account and returns its id.
func newTestUser(t *testing.T, db *sql.DB, email string) string {
	t.Helper()
	u, err := NewUserRepo(db).Create(context.Background(), RegisterInput{
		Name: "Test " + email, Email: email, Password: "secret1",
	}, 4)
	require.NoError(t, err)
	return u.ID
}

type fixture struct {
	db    *sql.DB
	alice string
	bob   string
}

func newFixture(t *testing.T) fixture {
	db := dbtest.New(t)
	return fixture{
		db:    db,
		alice: newTestUser(t, db, "alice@example.com"),
		bob:   newTestUser(t, db, "bob@example.com"),
	}
}

// chars returns n two-byte characters, so limits are checked in characters
// rather than bytes.
func chars(n int) string { return strings.Repeat("é", n) }

func TestFieldLengthLimits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	guests := NewGuestRepo(f.db)
	expenses := NewExpenseRepo(f.db)
	reqs := NewRequirementRepo(f.db)
	users := NewUserRepo(f.db)

	e, err := expenses.Create(ctx, f.alice, NewExpenseID(), ExpenseInput{Category: ptr(chars(maxShortLen))}, nil)
	require.NoError(t, err, "a value at the limit is accepted")

	longEmail := strings.Repeat("a", maxShortLen) + "@example.com"
	tooMany := make([]string, maxListItems+1)
	for i := range tooMany {
		tooMany[i] = "x" + strings.Repeat("y", i%5)
	}

	cases := map[string]struct {
		run   func() error
		field string
	}{
		"guest name": {func() error {
			_, err := guests.Create(ctx, f.alice, GuestInput{Name: ptr(chars(maxShortLen + 1))})
			return err
		}, "name"},
		"guest email": {func() error {
			_, err := guests.Create(ctx, f.alice, GuestInput{Name: ptr("A"), Email: ptr(longEmail)})
			return err
		}, "email"},
		"guest address": {func() error {
			_, err := guests.Create(ctx, f.alice, GuestInput{Name: ptr("A"), Address: ptr(chars(maxAddressLen + 1))})
			return err
		}, "address"},
		"guest members": {func() error {
			_, err := guests.Create(ctx, f.alice, GuestInput{Name: ptr("A"), Members: &tooMany})
			return err
		}, "members"},
		"guest tag": {func() error {
			_, err := guests.Create(ctx, f.alice, GuestInput{Name: ptr("A"), Tags: &[]string{chars(maxListItemLen + 1)}})
			return err
		}, "tags"},
		"expense category": {func() error {
			_, _, err := expenses.Update(ctx, f.alice, e.ID, ExpenseInput{Category: ptr(chars(maxShortLen + 1))}, nil)
			return err
		}, "category"},
		"expense notes": {func() error {
			_, _, err := expenses.Update(ctx, f.alice, e.ID, ExpenseInput{Notes: ptr(chars(maxTextLen + 1))}, nil)
			return err
		}, "notes"},
		"item name": {func() error {
			_, err := expenses.AddItem(ctx, f.alice, e.ID, ItemInput{Name: ptr(chars(maxShortLen + 1)), Cost: ptr(1.0)})
			return err
		}, "name"},
		"requirement item": {func() error {
			_, err := reqs.Create(ctx, f.alice, RequirementInput{Item: ptr(chars(maxShortLen + 1))})
			return err
		}, "item"},
		"requirement category": {func() error {
			_, err := reqs.Create(ctx, f.alice, RequirementInput{Item: ptr("x"), Category: ptr(chars(maxShortLen + 1))})
			return err
		}, "category"},
		"register name": {func() error {
			_, err := users.Create(ctx, RegisterInput{Name: chars(maxShortLen + 1), Email: "c@example.com", Password: "secret1"}, 4)
			return err
		}, "name"},
		"profile phone": {func() error {
			_, err := users.UpdateProfile(ctx, f.alice, ProfilePatch{Phone: ptr(strings.Repeat("1", maxPhoneLen+1))})
			return err
		}, "phone"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var ve *ValidationError
			require.True(t, errors.As(tc.run(), &ve))
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}
