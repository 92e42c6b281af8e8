package feed

import "github.com/roach88/feedsync/internal/activity"

// FetchResult is one page delivered by the repository.
type FetchResult struct {
	Activities  []activity.Activity
	IsFromCache bool
	LoadedAll   bool
}

// Repository is the source of truth for persisted and network activities.
//
// FetchPage never blocks the caller: it completes asynchronously by invoking
// callback at most once, possibly from another goroutine. Transient failures
// are retried inside the repository. isCancelled is polled between attempts;
// once it reports true the repository may drop the callback.
type Repository interface {
	FetchPage(accountID, slug string, before *activity.Activity, isCancelled func() bool, callback func(FetchResult))
	GetActivity(accountID, id string) (activity.Activity, bool)
	GetAllIDs(accountID, slug string) ([]string, bool)
	GetLocalAndPending(accountID, slug string) []activity.Activity
	PersistList(accountID, slug string, activities []activity.Activity, afterPaginate bool, loadedAll *bool)
}

// Delegate receives UI notifications. Methods run on the Dispatcher
// goroutine, never on a session loop.
type Delegate interface {
	OnDataLoaded(isUpdateEvent bool)
	OnCacheMiss()
	OnHistoryFullyLoaded()
}

// NopDelegate ignores every notification.
type NopDelegate struct{}

func (NopDelegate) OnDataLoaded(bool)     {}
func (NopDelegate) OnCacheMiss()          {}
func (NopDelegate) OnHistoryFullyLoaded() {}
