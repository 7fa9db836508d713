package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wedding-planner/internal/model"
)

func TestRequirementRepo_CreateDefaults(t *testing.T) {
	f := newFixture(t)
	q, err := NewRequirementRepo(f.db).Create(context.Background(), f.alice, RequirementInput{Item: ptr("Book photographer")})
	require.NoError(t, err)
	assert.Equal(t, model.RequirementPending, q.Status)
	assert.Equal(t, model.PriorityMedium, q.Priority)
	assert.Equal(t, "general", q.Category)
	assert.Nil(t, q.DueDate)
	assert.Nil(t, q.LinkedExpense)
}

func TestRequirementRepo_BulkStatusOwnedSubset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewRequirementRepo(f.db)

	r1, err := repo.Create(ctx, f.alice, RequirementInput{Item: ptr("r1")})
	require.NoError(t, err)
	r2, err := repo.Create(ctx, f.alice, RequirementInput{Item: ptr("r2")})
	require.NoError(t, err)
	r3, err := repo.Create(ctx, f.bob, RequirementInput{Item: ptr("r3")})
	require.NoError(t, err)

	n, err := repo.BulkSetStatus(ctx, f.alice, []string{r1.ID, r2.ID, r3.ID}, model.RequirementDone)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, id := range []string{r1.ID, r2.ID} {
		got, err := repo.Get(ctx, f.alice, id)
		require.NoError(t, err)
		assert.Equal(t, model.RequirementDone, got.Status)
	}
	other, err := repo.Get(ctx, f.bob, r3.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequirementPending, other.Status)

	_, err = repo.BulkSetStatus(ctx, f.alice, []string{r1.ID}, "finished")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "status", ve.Field)
}

func TestRequirementRepo_BulkStatusIDLimit(t *testing.T) {
	f := newFixture(t)
	_, err := NewRequirementRepo(f.db).BulkSetStatus(context.Background(), f.alice, fakeIDs(MaxBulkIDs+1), model.RequirementDone)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "requirementIds", ve.Field)
}

func TestRequirementRepo_ToggleStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewRequirementRepo(f.db)

	q, err := repo.Create(ctx, f.alice, RequirementInput{Item: ptr("Order cake")})
	require.NoError(t, err)

	q, err = repo.ToggleStatus(ctx, f.alice, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequirementDone, q.Status)
	q, err = repo.ToggleStatus(ctx, f.alice, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequirementPending, q.Status)

	_, err = repo.ToggleStatus(ctx, f.bob, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequirementRepo_ListByStatusOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewRequirementRepo(f.db)

	create := func(item string, p model.Priority, due string) {
		t.Helper()
		in := RequirementInput{Item: ptr(item), Priority: &p}
		if due != "" {
			in.DueDate = ptr(due)
		}
		_, err := repo.Create(ctx, f.alice, in)
		require.NoError(t, err)
	}
	create("low-early", model.PriorityLow, "2027-01-01")
	create("high-undated", model.PriorityHigh, "")
	create("medium", model.PriorityMedium, "2027-03-01")
	create("high-late", model.PriorityHigh, "2027-05-01")
	create("high-early", model.PriorityHigh, "2027-02-01")

	done := model.RequirementDone
	_, err := repo.Create(ctx, f.alice, RequirementInput{Item: ptr("finished"), Status: &done})
	require.NoError(t, err)

	list, err := repo.ListByStatus(ctx, f.alice, model.RequirementPending)
	require.NoError(t, err)
	var items []string
	for _, q := range list {
		items = append(items, q.Item)
	}
	assert.Equal(t, []string{"high-early", "high-late", "high-undated", "medium", "low-early"}, items)

	_, err = repo.ListByStatus(ctx, f.alice, "archived")
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestRequirementRepo_Stats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewRequirementRepo(f.db)

	empty, err := repo.Stats(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, model.RequirementStats{}, empty)

	yesterday := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	nextYear := time.Now().UTC().AddDate(1, 0, 0).Format("2006-01-02")
	high, low := model.PriorityHigh, model.PriorityLow
	done := model.RequirementDone

	_, err = repo.Create(ctx, f.alice, RequirementInput{Item: ptr("late"), Priority: &high, DueDate: ptr(yesterday)})
	require.NoError(t, err)
	_, err = repo.Create(ctx, f.alice, RequirementInput{Item: ptr("late but done"), Status: &done, DueDate: ptr(yesterday)})
	require.NoError(t, err)
	_, err = repo.Create(ctx, f.alice, RequirementInput{Item: ptr("future"), Priority: &low, DueDate: ptr(nextYear)})
	require.NoError(t, err)
	_, err = repo.Create(ctx, f.alice, RequirementInput{Item: ptr("undated")})
	require.NoError(t, err)

	s, err := repo.Stats(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, model.RequirementStats{
		Total: 4, Pending: 3, Done: 1,
		HighPriority: 1, MediumPriority: 2, LowPriority: 1,
		Overdue: 1,
	}, s)
}

func TestRequirementRepo_LinkedExpenseMustBeOwned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewRequirementRepo(f.db)
	expenses := NewExpenseRepo(f.db)

	mine, err := expenses.Create(ctx, f.alice, NewExpenseID(), ExpenseInput{Category: ptr("Venue")}, nil)
	require.NoError(t, err)
	theirs, err := expenses.Create(ctx, f.bob, NewExpenseID(), ExpenseInput{Category: ptr("Venue")}, nil)
	require.NoError(t, err)

	_, err = repo.Create(ctx, f.alice, RequirementInput{Item: ptr("Pay venue"), LinkedExpense: ptr(theirs.ID)})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "linkedExpense", ve.Field)

	q, err := repo.Create(ctx, f.alice, RequirementInput{Item: ptr("Pay venue"), LinkedExpense: ptr(mine.ID)})
	require.NoError(t, err)
	require.NotNil(t, q.LinkedExpense)
	assert.Equal(t, mine.ID, *q.LinkedExpense)

	q, err = repo.Update(ctx, f.alice, q.ID, RequirementInput{LinkedExpense: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, q.LinkedExpense)
}

func TestRequirementRepo_UpdateAndIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewRequirementRepo(f.db)

	q, err := repo.Create(ctx, f.bob, RequirementInput{Item: ptr("Bob's task"), DueDate: ptr("2027-01-01")})
	require.NoError(t, err)

	_, err = repo.Update(ctx, f.alice, q.ID, RequirementInput{Item: ptr("mine")})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, f.alice, q.ID), ErrNotFound)
	list, err := repo.List(ctx, f.alice)
	require.NoError(t, err)
	assert.Empty(t, list)

	high := model.PriorityHigh
	u, err := repo.Update(ctx, f.bob, q.ID, RequirementInput{Priority: &high, DueDate: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, u.Priority)
	assert.Equal(t, "Bob's task", u.Item)
	assert.Nil(t, u.DueDate)

	require.NoError(t, repo.Delete(ctx, f.bob, q.ID))
	_, err = repo.Get(ctx, f.bob, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
