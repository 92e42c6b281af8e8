package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedsync/internal/activity"
)

func seed(t *testing.T, s *Store, account string, acts ...activity.Activity) {
	t.Helper()
	require.NoError(t, s.UpsertActivities(context.Background(), account, acts))
}

func TestUpsertActivities_NewerFetchOverwrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestTransaction("a:0", 100)
	seed(t, s, "acc", first)

	second := first
	second.IsPending = false
	second.ShouldHide = true
	second.Comment = "updated"
	seed(t, s, "acc", second)

	got, err := s.ReadActivity(ctx, "acc", "a:0")
	require.NoError(t, err)
	assert.True(t, got.ShouldHide)
	assert.Equal(t, "updated", got.Comment)
}

func TestUpsertActivities_Empty(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.UpsertActivities(context.Background(), "acc", nil))
}

func TestReadActivity_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadActivity(context.Background(), "acc", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadActivity_AccountIsolation(t *testing.T) {
	s := createTestStore(t)
	seed(t, s, "acc1", createTestTransaction("a:0", 1))

	_, err := s.ReadActivity(context.Background(), "acc2", "a:0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadPage_OrderAndCursor(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seed(t, s, "acc",
		createTestTransaction("a:0", 500),
		createTestTransaction("b:0", 400),
		createTestTransaction("c:0", 400),
		createTestTransaction("d:0", 300),
		createTestTransaction("e:0", 200),
	)

	page, err := s.ReadPage(ctx, "acc", "", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:0", "c:0"}, activity.IDs(page))

	cursor := page[len(page)-1]
	page, err = s.ReadPage(ctx, "acc", "", &cursor, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b:0", "d:0"}, activity.IDs(page))

	cursor = page[len(page)-1]
	page, err = s.ReadPage(ctx, "acc", "", &cursor, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"e:0"}, activity.IDs(page))

	page, err = s.ReadPage(ctx, "acc", "", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestReadPage_ScopeIncludesSwapSides(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	usdt := createTestTransaction("u:0", 50)
	usdt.Slug = "usdt"
	seed(t, s, "acc",
		createTestTransaction("t:0", 100),
		createTestSwap("1", 90, "toncoin", "usdt"),
		createTestSwap("2", 80, "usdt", "toncoin"),
		createTestSwap("3", 70, "usdt", "not"),
		usdt,
	)

	page, err := s.ReadPage(ctx, "acc", "toncoin", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"t:0", activity.SwapID("1"), activity.SwapID("2")}, activity.IDs(page))

	ids, err := s.ReadScopeIDs(ctx, "acc", "usdt")
	require.NoError(t, err)
	assert.Equal(t, []string{activity.SwapID("1"), activity.SwapID("2"), activity.SwapID("3"), "u:0"}, ids)

	ids, err = s.ReadScopeIDs(ctx, "acc", "")
	require.NoError(t, err)
	assert.Len(t, ids, 5)
}

func TestScopeList_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.ReadScopeList(ctx, "acc", "")
	assert.ErrorIs(t, err, ErrNotFound)

	loaded := true
	require.NoError(t, s.WriteScopeList(ctx, "acc", "", []string{"a:0", "b:0"}, &loaded))
	list, err := s.ReadScopeList(ctx, "acc", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:0", "b:0"}, list.IDs)
	assert.True(t, list.LoadedAll)

	// nil keeps the stored flag
	require.NoError(t, s.WriteScopeList(ctx, "acc", "", []string{"c:0"}, nil))
	list, err = s.ReadScopeList(ctx, "acc", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"c:0"}, list.IDs)
	assert.True(t, list.LoadedAll)

	require.NoError(t, s.WriteScopeList(ctx, "acc", "toncoin", nil, nil))
	list, err = s.ReadScopeList(ctx, "acc", "toncoin")
	require.NoError(t, err)
	assert.Empty(t, list.IDs)
	assert.False(t, list.LoadedAll)
}

func TestDeleteAccount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seed(t, s, "acc", createTestTransaction("a:0", 1))
	seed(t, s, "keep", createTestTransaction("a:0", 1))
	require.NoError(t, s.WriteScopeList(ctx, "acc", "", []string{"a:0"}, nil))

	require.NoError(t, s.DeleteAccount(ctx, "acc"))

	_, err := s.ReadActivity(ctx, "acc", "a:0")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ReadScopeList(ctx, "acc", "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ReadActivity(ctx, "keep", "a:0")
	assert.NoError(t, err)
}
