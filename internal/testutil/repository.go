package testutil

import (
	"slices"
	"sync"

	"github.com/roach88/feedsync/internal/activity"
	"github.com/roach88/feedsync/internal/feed"
)

// FetchCall records one FetchPage request.
type FetchCall struct {
	AccountID string
	Slug      string
	// Before is the cursor activity ID, empty for a first page.
	Before string
}

// PersistCall records one PersistList request.
type PersistCall struct {
	AccountID     string
	Slug          string
	IDs           []string
	AfterPaginate bool
	LoadedAll     *bool
}

// FakeRepository is an in-memory feed.Repository serving pages from a fixed
// history. Callbacks run synchronously unless Hold is on, in which case they
// queue until Release.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeRepository struct {
	mu          sync.Mutex
	pageSize    int
	fromCache   bool
	miss        bool
	history     map[string][]activity.Activity
	known       map[string]map[string]activity.Activity
	locals      map[string][]activity.Activity
	fetches     []FetchCall
	persisted   []PersistCall
	hold        bool
	held        []func()
	cancelledAt int
}

var _ feed.Repository = (*FakeRepository)(nil)

// NewFakeRepository creates a repository serving pages of pageSize.
func NewFakeRepository(pageSize int) *FakeRepository {
	return &FakeRepository{
		pageSize: pageSize,
		history:  make(map[string][]activity.Activity),
		known:    make(map[string]map[string]activity.Activity),
		locals:   make(map[string][]activity.Activity),
	}
}

// SetHistory replaces the account's network history.
func (r *FakeRepository) SetHistory(accountID string, activities []activity.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := slices.Clone(activities)
	activity.Sort(h)
	r.history[accountID] = h
}

// ServeFromCache marks every later page as coming from the cache.
func (r *FakeRepository) ServeFromCache(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fromCache = v
}

// SimulateCacheMiss makes every later page empty and not fully loaded.
func (r *FakeRepository) SimulateCacheMiss(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.miss = v
}

// Add makes activities resolvable, as a realtime update would.
func (r *FakeRepository) Add(accountID string, activities ...activity.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remember(accountID, activities)
}

// AddLocal registers a local or pending activity.
func (r *FakeRepository) AddLocal(accountID string, a activity.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locals[accountID] = append(r.locals[accountID], a)
}

// Hold queues callbacks instead of running them.
func (r *FakeRepository) Hold(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hold = v
}

// Release runs every queued callback and returns how many ran.
func (r *FakeRepository) Release() int {
	r.mu.Lock()
	held := r.held
	r.held = nil
	r.mu.Unlock()

	for _, fn := range held {
		fn()
	}
	return len(held)
}

// Pending returns the number of queued callbacks.
func (r *FakeRepository) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}

// Fetches returns every FetchPage call so far.
func (r *FakeRepository) Fetches() []FetchCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.fetches)
}

// Persisted returns every PersistList call so far.
func (r *FakeRepository) Persisted() []PersistCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.persisted)
}

// CancelledDeliveries counts callbacks delivered after isCancelled
// reported true.
func (r *FakeRepository) CancelledDeliveries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelledAt
}

func (r *FakeRepository) FetchPage(accountID, slug string, before *activity.Activity, isCancelled func() bool, callback func(feed.FetchResult)) {
	r.mu.Lock()
	call := FetchCall{AccountID: accountID, Slug: slug}
	if before != nil {
		call.Before = before.ID
	}
	r.fetches = append(r.fetches, call)

	var remaining []activity.Activity
	for _, a := range r.history[accountID] {
		if !a.BelongsTo(slug) {
			continue
		}
		if before != nil && activity.Compare(a, *before) <= 0 {
			continue
		}
		remaining = append(remaining, a)
	}
	page := remaining
	if len(page) > r.pageSize {
		page = page[:r.pageSize]
	}
	page = slices.Clone(page)
	r.remember(accountID, page)

	res := feed.FetchResult{
		Activities:  page,
		IsFromCache: r.fromCache,
		LoadedAll:   len(remaining) <= r.pageSize,
	}
	if r.miss {
		res = feed.FetchResult{}
	}
	deliver := func() {
		if isCancelled() {
			r.mu.Lock()
			r.cancelledAt++
			r.mu.Unlock()
		}
		callback(res)
	}

	if r.hold {
		r.held = append(r.held, deliver)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	deliver()
}

func (r *FakeRepository) GetActivity(accountID, id string) (activity.Activity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.known[accountID][id]; ok {
		return a, true
	}
	for _, a := range r.locals[accountID] {
		if a.ID == id {
			return a, true
		}
	}
	return activity.Activity{}, false
}

func (r *FakeRepository) GetAllIDs(accountID, slug string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []activity.Activity
	for _, a := range r.known[accountID] {
		if a.BelongsTo(slug) && a.IsTimestampEligible() {
			list = append(list, a)
		}
	}
	activity.Sort(list)
	return activity.IDs(list), len(list) > 0
}

func (r *FakeRepository) GetLocalAndPending(accountID, slug string) []activity.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []activity.Activity
	for _, a := range r.locals[accountID] {
		if a.BelongsTo(slug) {
			out = append(out, a)
		}
	}
	return out
}

func (r *FakeRepository) PersistList(accountID, slug string, activities []activity.Activity, afterPaginate bool, loadedAll *bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := PersistCall{
		AccountID:     accountID,
		Slug:          slug,
		IDs:           activity.IDs(activities),
		AfterPaginate: afterPaginate,
	}
	if loadedAll != nil {
		v := *loadedAll
		call.LoadedAll = &v
	}
	r.persisted = append(r.persisted, call)
}

// remember requires r.mu held.
func (r *FakeRepository) remember(accountID string, activities []activity.Activity) {
	m := r.known[accountID]
	if m == nil {
		m = make(map[string]activity.Activity)
		r.known[accountID] = m
	}
	for _, a := range activities {
		m[a.ID] = a
	}
}

// RecordingDelegate counts feed.Delegate notifications.
type RecordingDelegate struct {
	mu          sync.Mutex
	DataLoaded  []bool
	CacheMisses int
	FullyLoaded int
}

var _ feed.Delegate = (*RecordingDelegate)(nil)

func (d *RecordingDelegate) OnDataLoaded(isUpdateEvent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DataLoaded = append(d.DataLoaded, isUpdateEvent)
}

func (d *RecordingDelegate) OnCacheMiss() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CacheMisses++
}

func (d *RecordingDelegate) OnHistoryFullyLoaded() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FullyLoaded++
}

// Counts returns a consistent copy of the recorded notifications.
func (d *RecordingDelegate) Counts() (dataLoaded []bool, cacheMisses, fullyLoaded int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.DataLoaded), d.CacheMisses, d.FullyLoaded
}
