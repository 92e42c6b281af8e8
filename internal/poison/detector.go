// Package poison detects address-poisoning transfers.
//
// A poisoning attack sends a worthless transfer from an address crafted to
// share the visible prefix and suffix of a real counterparty, hoping the
// user later copies it from history. Wallet UIs truncate addresses to their
// first and last few characters, so the Detector keys counterparties by that
// same truncation and flags any address that matches a known key without
// being byte-identical to the canonical address stored under it.
package poison

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/roach88/feedsync/internal/activity"
)

const (
	keyPrefixLen = 4
	keySuffixLen = 4
)

// FuzzyKey returns the visually truncated form of address.
// Addresses too short to truncate are their own key.
func FuzzyKey(address string) string {
	if len(address) <= keyPrefixLen+keySuffixLen {
		return address
	}
	return address[:keyPrefixLen] + "..." + address[len(address)-keySuffixLen:]
}

type entry struct {
	timestamp int64
	amount    decimal.Decimal
	address   string
}

// Detector caches, per account, the canonical address behind every fuzzy
// key seen on an incoming transfer.
//
// The cache is unbounded: it grows with the number of distinct counterparties
// an account has, not with history length.
//
// Thread-safety: all methods are safe for concurrent use. Feed sessions of
// the same account share one Detector.
type Detector struct {
	mu       sync.RWMutex
	accounts map[string]map[string]entry
}

// NewDetector creates an empty Detector.
func NewDetector() *Detector {
	return &Detector{accounts: make(map[string]map[string]entry)}
}

// RecordObservedTransfer updates the entry for address's fuzzy key when no
// entry exists, when the stored entry is older, or when timestamps tie and
// the stored amount is smaller.
//
// TODO: confirm with product whether the earliest transfer should win
// instead; keeping the newest lets a later decoy displace the real address.
func (d *Detector) RecordObservedTransfer(accountID, address string, amount decimal.Decimal, timestamp int64) {
	if address == "" {
		return
	}
	key := FuzzyKey(address)

	d.mu.Lock()
	defer d.mu.Unlock()

	cache, ok := d.accounts[accountID]
	if !ok {
		cache = make(map[string]entry)
		d.accounts[accountID] = cache
	}

	cached, ok := cache[key]
	if !ok ||
		cached.timestamp < timestamp ||
		(cached.timestamp == timestamp && cached.amount.LessThan(amount)) {
		cache[key] = entry{timestamp: timestamp, amount: amount, address: address}
	}
}

// IsPoisoningAttempt reports whether sender visually matches a recorded
// counterparty without being that counterparty.
func (d *Detector) IsPoisoningAttempt(accountID, sender string) bool {
	if sender == "" {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	cached, ok := d.accounts[accountID][FuzzyKey(sender)]
	return ok && cached.address != sender
}

// Observe records every incoming transfer among activities.
func (d *Detector) Observe(accountID string, activities []activity.Activity) {
	for _, a := range activities {
		if a.IsIncomingTransfer() {
			d.RecordObservedTransfer(accountID, a.FromAddress, a.Amount, a.Timestamp)
		}
	}
}

// RemoveAccount drops everything recorded for accountID.
func (d *Detector) RemoveAccount(accountID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.accounts, accountID)
}

// Len returns the number of fuzzy keys cached for accountID.
func (d *Detector) Len(accountID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.accounts[accountID])
}
