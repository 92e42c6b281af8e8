package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/feedsync/internal/activity"
)

// Page is one network page.
type Page struct {
	Activities []activity.Activity
	LoadedAll  bool
}

// Backend serves activity history from the network.
type Backend interface {
	FetchPage(ctx context.Context, accountID, slug string, before *activity.Activity, limit int) (Page, error)
}

// ErrUnavailable is returned by FixtureBackend while failures are injected.
var ErrUnavailable = errors.New("backend unavailable")

// FixtureBackend serves pages from an in-memory history. Used by the
// simulator and tests.
type FixtureBackend struct {
	mu       sync.Mutex
	history  map[string][]activity.Activity
	failures int
	calls    int
}

// NewFixtureBackend creates an empty backend.
func NewFixtureBackend() *FixtureBackend {
	return &FixtureBackend{history: make(map[string][]activity.Activity)}
}

// SetHistory replaces the account's history.
func (b *FixtureBackend) SetHistory(accountID string, activities []activity.Activity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := slices.Clone(activities)
	activity.Sort(h)
	b.history[accountID] = h
}

// Append adds activities to the account's history.
func (b *FixtureBackend) Append(accountID string, activities ...activity.Activity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := append(b.history[accountID], activities...)
	activity.Sort(h)
	b.history[accountID] = h
}

// FailNext makes the next n calls return ErrUnavailable.
func (b *FixtureBackend) FailNext(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = n
}

// Calls returns how many times FetchPage was called.
func (b *FixtureBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *FixtureBackend) FetchPage(ctx context.Context, accountID, slug string, before *activity.Activity, limit int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	if b.failures > 0 {
		b.failures--
		return Page{}, fmt.Errorf("fetch %s page: %w", accountID, ErrUnavailable)
	}

	var remaining []activity.Activity
	for _, a := range b.history[accountID] {
		if !a.BelongsTo(slug) {
			continue
		}
		if before != nil && activity.Compare(a, *before) <= 0 {
			continue
		}
		remaining = append(remaining, a)
	}

	page := remaining
	if len(page) > limit {
		page = page[:limit]
	}
	return Page{
		Activities: slices.Clone(page),
		LoadedAll:  len(remaining) <= limit,
	}, nil
}
