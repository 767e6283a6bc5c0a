package statemachine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/statemachine"
)

type state string

type event string

const (
	draft     state = "draft"
	inReview  state = "in_review"
	approved  state = "approved"
	published state = "published"

	submit  event = "submit"
	approve event = "approve"
	publish event = "publish"
)

func TestTable_Fire(t *testing.T) {
	t.Parallel()

	table := statemachine.MustNew(
		statemachine.WithTransition[state, event](draft, inReview, submit),
		statemachine.WithTransition[state, event](inReview, approved, approve),
		statemachine.WithTransition[state, event](approved, published, publish),
	)
	ctx := context.Background()

	t.Run("follows the table", func(t *testing.T) {
		t.Parallel()

		next, err := table.Fire(ctx, draft, submit, nil)
		require.NoError(t, err)
		assert.Equal(t, inReview, next)

		next, err = table.Fire(ctx, next, approve, nil)
		require.NoError(t, err)
		assert.Equal(t, approved, next)
	})

	t.Run("unknown pair keeps the state", func(t *testing.T) {
		t.Parallel()

		next, err := table.Fire(ctx, draft, publish, nil)
		require.Error(t, err)
		assert.True(t, statemachine.IsNoTransitionAvailableError(err))
		assert.Equal(t, draft, next)
		assert.False(t, table.CanFire(ctx, draft, publish, nil))
	})

	t.Run("lists outgoing events", func(t *testing.T) {
		t.Parallel()

		assert.ElementsMatch(t, []event{submit}, table.Events(draft))
		assert.Empty(t, table.Events(published))
	})
}

func TestTable_Guards(t *testing.T) {
	t.Parallel()

	isAdmin := func(_ context.Context, _ state, _ event, data any) bool {
		role, _ := data.(string)
		return role == "admin"
	}
	table := statemachine.MustNew(
		// Admins skip review.
		statemachine.WithTransition(draft, published, submit, statemachine.WithGuard(isAdmin)),
		statemachine.WithTransition(draft, inReview, submit,
			statemachine.WithGuard(func(_ context.Context, _ state, _ event, data any) bool {
				return data != nil
			}),
		),
	)
	ctx := context.Background()

	next, err := table.Fire(ctx, draft, submit, "admin")
	require.NoError(t, err)
	assert.Equal(t, published, next)

	next, err = table.Fire(ctx, draft, submit, "editor")
	require.NoError(t, err)
	assert.Equal(t, inReview, next)

	next, err = table.Fire(ctx, draft, submit, nil)
	assert.True(t, statemachine.IsTransitionRejectedError(err))
	assert.Equal(t, draft, next)
	assert.False(t, table.CanFire(ctx, draft, submit, nil))
}

func TestTable_Actions(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	var calls []string
	table := statemachine.MustNew(
		statemachine.WithTransition(draft, inReview, submit,
			statemachine.WithAction(func(_ context.Context, from, to state, _ event, _ any) error {
				calls = append(calls, string(from)+">"+string(to))
				return nil
			}),
		),
		statemachine.WithTransition(inReview, approved, approve,
			statemachine.WithAction(func(context.Context, state, state, event, any) error {
				return errBoom
			}),
		),
	)
	ctx := context.Background()

	assert.True(t, table.CanFire(ctx, draft, submit, nil))
	assert.Empty(t, calls, "CanFire must not run actions")

	next, err := table.Fire(ctx, draft, submit, nil)
	require.NoError(t, err)
	assert.Equal(t, inReview, next)
	assert.Equal(t, []string{"draft>in_review"}, calls)

	next, err = table.Fire(ctx, inReview, approve, nil)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, inReview, next)
}

func TestNew_DuplicateTransition(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(
		statemachine.WithTransition[state, event](draft, inReview, submit),
		statemachine.WithTransition[state, event](draft, inReview, submit),
	)
	var dup *statemachine.ErrDuplicateTransition
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "draft", dup.StateName)
	assert.Equal(t, "submit", dup.EventName)

	assert.Panics(t, func() {
		statemachine.MustNew(
			statemachine.WithTransition[state, event](draft, inReview, submit),
			statemachine.WithTransition[state, event](draft, inReview, submit),
		)
	})
}
