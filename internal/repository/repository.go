package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/feedsync/internal/activity"
	"github.com/roach88/feedsync/internal/bus"
	"github.com/roach88/feedsync/internal/feed"
	"github.com/roach88/feedsync/internal/store"
)

// DefaultPageSize is the number of activities requested per page.
const DefaultPageSize = 60

var errCancelled = errors.New("fetch cancelled")

// RetryPolicy bounds backend retries. Zero MaxAttempts retries until the
// request is cancelled or the repository is closed.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used when Options leaves Retry zero.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     5,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	var out backoff.BackOff = b
	if p.MaxAttempts > 0 {
		out = backoff.WithMaxRetries(out, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(out, ctx)
}

// Options configures a Repository.
type Options struct {
	PageSize int
	Retry    RetryPolicy
}

// Repository implements feed.Repository over a store, a backend and a bus.
type Repository struct {
	store    *store.Store
	backend  Backend
	bus      *bus.Bus
	pageSize int
	retry    RetryPolicy

	ctx    context.Context
	cancel context.CancelFunc

	flightMu   sync.Mutex
	flightCond *sync.Cond
	inflight   int
	started    int64

	mu     sync.RWMutex
	known  map[string]map[string]activity.Activity
	locals map[string]map[string]activity.Activity
}

var (
	_ feed.Repository     = (*Repository)(nil)
	_ feed.AccountRemover = (*Repository)(nil)
)

// New creates a repository. Close releases its background fetches; the store
// and bus stay owned by the caller.
func New(st *store.Store, backend Backend, updates *bus.Bus, opts Options) *Repository {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Repository{
		store:    st,
		backend:  backend,
		bus:      updates,
		pageSize: opts.PageSize,
		retry:    opts.Retry,
		ctx:      ctx,
		cancel:   cancel,
		known:    make(map[string]map[string]activity.Activity),
		locals:   make(map[string]map[string]activity.Activity),
	}
	r.flightCond = sync.NewCond(&r.flightMu)
	return r
}

// Close aborts retries in flight and waits for every fetch goroutine.
func (r *Repository) Close() {
	r.cancel()
	r.Wait()
}

// Wait blocks until no fetch is in flight.
func (r *Repository) Wait() {
	r.flightMu.Lock()
	defer r.flightMu.Unlock()
	for r.inflight > 0 {
		r.flightCond.Wait()
	}
}

// Started returns the number of fetches started so far.
func (r *Repository) Started() int64 {
	r.flightMu.Lock()
	defer r.flightMu.Unlock()
	return r.started
}

func (r *Repository) begin() {
	r.flightMu.Lock()
	defer r.flightMu.Unlock()
	r.inflight++
	r.started++
}

func (r *Repository) end() {
	r.flightMu.Lock()
	defer r.flightMu.Unlock()
	r.inflight--
	if r.inflight == 0 {
		r.flightCond.Broadcast()
	}
}

// FetchPage serves the page below before from the cache when the cache can
// vouch for it, and from the backend otherwise.
func (r *Repository) FetchPage(accountID, slug string, before *activity.Activity, isCancelled func() bool, callback func(feed.FetchResult)) {
	var cursor *activity.Activity
	if before != nil {
		c := *before
		cursor = &c
	}

	r.begin()
	go func() {
		defer r.end()

		res, err := r.fetch(accountID, slug, cursor, isCancelled)
		if errors.Is(err, errCancelled) || isCancelled() {
			slog.Debug("fetch dropped for cancelled session", "account_id", accountID, "slug", slug)
			return
		}
		if err != nil {
			// The session treats an empty page as a miss and stays usable.
			slog.Error("fetch failed", "account_id", accountID, "slug", slug, "error", err)
			res = feed.FetchResult{IsFromCache: true}
		}
		callback(res)
	}()
}

func (r *Repository) fetch(accountID, slug string, before *activity.Activity, isCancelled func() bool) (feed.FetchResult, error) {
	if res, ok := r.fromCache(accountID, slug, before); ok {
		return res, nil
	}

	var page Page
	op := func() error {
		if isCancelled() {
			return backoff.Permanent(errCancelled)
		}
		var err error
		page, err = r.backend.FetchPage(r.ctx, accountID, slug, before, r.pageSize)
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("fetch retry",
			"account_id", accountID,
			"slug", slug,
			"wait", wait,
			"error", err)
	}
	if err := backoff.RetryNotify(op, r.retry.backOff(r.ctx), notify); err != nil {
		if errors.Is(err, errCancelled) {
			return feed.FetchResult{}, errCancelled
		}
		return feed.FetchResult{}, fmt.Errorf("fetch page: %w", err)
	}

	if err := r.store.UpsertActivities(r.ctx, accountID, page.Activities); err != nil {
		slog.Error("cache page", "account_id", accountID, "error", err)
	}
	r.remember(accountID, page.Activities)

	return feed.FetchResult{
		Activities: page.Activities,
		LoadedAll:  page.LoadedAll,
	}, nil
}

// fromCache returns a cached page when it is complete: either a full page of
// activities the persisted scope list already vouches for, or any page once
// the scope is known to be fully loaded.
func (r *Repository) fromCache(accountID, slug string, before *activity.Activity) (feed.FetchResult, bool) {
	list, err := r.store.ReadScopeList(r.ctx, accountID, slug)
	if errors.Is(err, store.ErrNotFound) {
		return feed.FetchResult{}, false
	}
	if err != nil {
		slog.Warn("read scope list", "account_id", accountID, "slug", slug, "error", err)
		return feed.FetchResult{}, false
	}

	cached, err := r.store.ReadPage(r.ctx, accountID, slug, before, r.pageSize)
	if err != nil {
		slog.Warn("read cached page", "account_id", accountID, "slug", slug, "error", err)
		return feed.FetchResult{}, false
	}

	if !list.LoadedAll {
		if len(cached) < r.pageSize {
			return feed.FetchResult{}, false
		}
		members := make(map[string]struct{}, len(list.IDs))
		for _, id := range list.IDs {
			members[id] = struct{}{}
		}
		for _, a := range cached {
			if _, ok := members[a.ID]; !ok {
				return feed.FetchResult{}, false
			}
		}
	}

	r.remember(accountID, cached)
	return feed.FetchResult{
		Activities:  cached,
		IsFromCache: true,
		LoadedAll:   list.LoadedAll && len(cached) < r.pageSize,
	}, true
}

// GetActivity resolves local and pending entries first, then the cache.
func (r *Repository) GetActivity(accountID, id string) (activity.Activity, bool) {
	r.mu.RLock()
	if a, ok := r.locals[accountID][id]; ok {
		r.mu.RUnlock()
		return a, true
	}
	if a, ok := r.known[accountID][id]; ok {
		r.mu.RUnlock()
		return a, true
	}
	r.mu.RUnlock()

	a, err := r.store.ReadActivity(r.ctx, accountID, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("read activity", "account_id", accountID, "id", id, "error", err)
		}
		return activity.Activity{}, false
	}
	r.remember(accountID, []activity.Activity{a})
	return a, true
}

// GetAllIDs returns the persisted list of the scope, falling back to every
// cached activity in it.
func (r *Repository) GetAllIDs(accountID, slug string) ([]string, bool) {
	list, err := r.store.ReadScopeList(r.ctx, accountID, slug)
	if err == nil {
		return list.IDs, true
	}
	if !errors.Is(err, store.ErrNotFound) {
		slog.Warn("read scope list", "account_id", accountID, "slug", slug, "error", err)
	}

	ids, err := r.store.ReadScopeIDs(r.ctx, accountID, slug)
	if err != nil {
		slog.Warn("read scope ids", "account_id", accountID, "slug", slug, "error", err)
		return nil, false
	}
	return ids, len(ids) > 0
}

// GetLocalAndPending returns the scope's unconfirmed activities, newest
// first.
func (r *Repository) GetLocalAndPending(accountID, slug string) []activity.Activity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]activity.Activity, 0, len(r.locals[accountID]))
	for _, a := range r.locals[accountID] {
		if a.BelongsTo(slug) {
			out = append(out, a)
		}
	}
	activity.Sort(out)
	return out
}

// PersistList stores the activities and the scope's ID list.
func (r *Repository) PersistList(accountID, slug string, activities []activity.Activity, afterPaginate bool, loadedAll *bool) {
	if err := r.store.UpsertActivities(r.ctx, accountID, activities); err != nil {
		slog.Error("persist activities", "account_id", accountID, "slug", slug, "error", err)
		return
	}
	if err := r.store.WriteScopeList(r.ctx, accountID, slug, activity.IDs(activities), loadedAll); err != nil {
		slog.Error("persist scope list", "account_id", accountID, "slug", slug, "error", err)
		return
	}
	r.remember(accountID, activities)
	slog.Debug("scope list persisted",
		"account_id", accountID,
		"slug", slug,
		"count", len(activities),
		"after_paginate", afterPaginate)
}

// Ingest records activities pushed by the network and publishes them.
// Pending activities are kept in memory; confirmed ones are cached and
// replace any pending entry with the same ID.
func (r *Repository) Ingest(ctx context.Context, kind bus.UpdateKind, accountID, slug string, activities []activity.Activity, loadedAll *bool) error {
	confirmed := make([]activity.Activity, 0, len(activities))

	r.mu.Lock()
	for _, a := range activities {
		if a.IsPending || a.IsLocal {
			r.localsFor(accountID)[a.ID] = a
			continue
		}
		delete(r.locals[accountID], a.ID)
		confirmed = append(confirmed, a)
	}
	r.mu.Unlock()

	if err := r.store.UpsertActivities(ctx, accountID, confirmed); err != nil {
		return fmt.Errorf("ingest %s: %w", kind, err)
	}
	r.remember(accountID, confirmed)

	return r.bus.Publish(bus.Update{
		Kind:       kind,
		AccountID:  accountID,
		Slug:       slug,
		Activities: activities,
		LoadedAll:  loadedAll,
	})
}

// AddLocal registers an optimistic activity and returns its ID.
func (r *Repository) AddLocal(accountID string, a activity.Activity) (string, error) {
	if a.ID == "" {
		a.ID = activity.NewLocalID()
	}
	a.IsLocal = true

	r.mu.Lock()
	r.localsFor(accountID)[a.ID] = a
	r.mu.Unlock()

	err := r.bus.Publish(bus.Update{
		Kind:       bus.KindUpdate,
		AccountID:  accountID,
		Activities: []activity.Activity{a},
	})
	return a.ID, err
}

// RemoveLocal drops an optimistic activity.
func (r *Repository) RemoveLocal(accountID, id string) error {
	r.mu.Lock()
	_, ok := r.locals[accountID][id]
	delete(r.locals[accountID], id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return r.bus.Publish(bus.Update{Kind: bus.KindUpdate, AccountID: accountID})
}

// RemoveAccount wipes the account from the cache and memory.
func (r *Repository) RemoveAccount(accountID string) error {
	r.mu.Lock()
	delete(r.known, accountID)
	delete(r.locals, accountID)
	r.mu.Unlock()

	if err := r.store.DeleteAccount(r.ctx, accountID); err != nil {
		return fmt.Errorf("remove account %s: %w", accountID, err)
	}
	return nil
}

func (r *Repository) remember(accountID string, activities []activity.Activity) {
	if len(activities) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.known[accountID]
	if m == nil {
		m = make(map[string]activity.Activity)
		r.known[accountID] = m
	}
	for _, a := range activities {
		m[a.ID] = a
	}
}

// localsFor requires r.mu held for writing.
func (r *Repository) localsFor(accountID string) map[string]activity.Activity {
	m := r.locals[accountID]
	if m == nil {
		m = make(map[string]activity.Activity)
		r.locals[accountID] = m
	}
	return m
}
