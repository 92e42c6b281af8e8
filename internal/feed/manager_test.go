package feed_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedsync/internal/bus"
	"github.com/roach88/feedsync/internal/feed"
	"github.com/roach88/feedsync/internal/testutil"
)

type removingRepository struct {
	*testutil.FakeRepository
	mu      sync.Mutex
	removed []string
}

func (r *removingRepository) RemoveAccount(accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, accountID)
	return nil
}

func newManager(t *testing.T) (*feed.Manager, *removingRepository) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	repo := &removingRepository{FakeRepository: testutil.NewFakeRepository(testPage)}
	ui := feed.NewDispatcher()
	go func() { _ = ui.Run(ctx) }()

	m := feed.NewManager(ctx, repo, bus.New(), nil, ui, feed.WithMinBudgetSize(testBudget))
	t.Cleanup(m.Shutdown)
	return m, repo
}

func TestManager_OpenReusesSession(t *testing.T) {
	m, _ := newManager(t)

	all := feed.Scope{AccountID: testAccount}
	token := feed.Scope{AccountID: testAccount, Slug: "usdt"}

	s1 := m.Open(all, nil)
	s2 := m.Open(all, nil)
	s3 := m.Open(token, nil)

	assert.Same(t, s1, s2)
	assert.NotSame(t, s1, s3)
	assert.Len(t, m.Sessions(), 2)

	got, ok := m.Get(token)
	require.True(t, ok)
	assert.Same(t, s3, got)
}

func TestManager_CloseCleansSession(t *testing.T) {
	m, _ := newManager(t)
	scope := feed.Scope{AccountID: testAccount}

	s := m.Open(scope, nil)
	m.Close(scope)

	assert.True(t, s.IsCleaned())
	_, ok := m.Get(scope)
	assert.False(t, ok)
}

func TestManager_RemoveAccount(t *testing.T) {
	m, repo := newManager(t)

	mine := m.Open(feed.Scope{AccountID: testAccount}, nil)
	token := m.Open(feed.Scope{AccountID: testAccount, Slug: "usdt"}, nil)
	other := m.Open(feed.Scope{AccountID: "acc-2"}, nil)

	m.Detector().RecordObservedTransfer(testAccount, "EQAB1234567890WXYZ", decimal.NewFromInt(1), 10)
	m.Detector().RecordObservedTransfer("acc-2", "EQAB1234567890WXYZ", decimal.NewFromInt(1), 10)

	require.NoError(t, m.RemoveAccount(testAccount))

	assert.True(t, mine.IsCleaned())
	assert.True(t, token.IsCleaned())
	assert.False(t, other.IsCleaned())
	assert.Zero(t, m.Detector().Len(testAccount))
	assert.Equal(t, 1, m.Detector().Len("acc-2"))
	assert.Equal(t, []string{testAccount}, repo.removed)
	assert.Len(t, m.Sessions(), 1)
}

func TestManager_SessionsLoad(t *testing.T) {
	m, repo := newManager(t)
	repo.SetHistory(testAccount, testutil.History(30, testutil.NewTimeline(1000, 10)))

	s := m.Open(feed.Scope{AccountID: testAccount}, nil)
	s.LoadFirstPage()

	require.Eventually(t, func() bool {
		snap, err := s.Inspect(context.Background())
		return err == nil && snap.LoadedAll && len(snap.BudgetIDs) == 20
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManager_Shutdown(t *testing.T) {
	m, _ := newManager(t)
	s := m.Open(feed.Scope{AccountID: testAccount}, nil)

	m.Shutdown()

	assert.True(t, s.IsCleaned())
	assert.Empty(t, m.Sessions())
}
