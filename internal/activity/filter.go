package activity

import "github.com/shopspring/decimal"

// PoisonChecker answers whether an address is a lookalike of a counterparty
// the account has already transacted with.
type PoisonChecker interface {
	IsPoisoningAttempt(accountID, address string) bool
}

// TinyClassifier flags dust and scam transfers.
// A zero threshold disables the amount check for that token.
type TinyClassifier struct {
	Default decimal.Decimal
	BySlug  map[string]decimal.Decimal
}

func (c TinyClassifier) threshold(slug string) decimal.Decimal {
	if t, ok := c.BySlug[slug]; ok {
		return t
	}
	return c.Default
}

// IsTinyOrScam reports whether a is an incoming transaction flagged as scam
// or carrying less than its token's tiny threshold.
func (c TinyClassifier) IsTinyOrScam(a Activity) bool {
	if a.Kind != KindTransaction || !a.IsIncoming {
		return false
	}
	if a.IsScam {
		return true
	}
	t := c.threshold(a.Slug)
	if !t.IsPositive() {
		return false
	}
	return a.Amount.Abs().LessThan(t)
}

// Filter is the visibility predicate for one account's feeds.
type Filter struct {
	AccountID string
	Poison    PoisonChecker
	// HideTiny reads the user's tiny-transfer preference. Nil means off.
	HideTiny func() bool
	Tiny     TinyClassifier
}

// Keep reports whether a is visible. All predicates must hold.
func (f Filter) Keep(a Activity, hideTinyIfRequired bool, scopeSlug string) bool {
	if a.ShouldHide {
		return false
	}
	if !a.BelongsTo(scopeSlug) {
		return false
	}
	if f.Poison != nil && a.IsIncomingTransfer() && f.Poison.IsPoisoningAttempt(f.AccountID, a.FromAddress) {
		return false
	}
	if hideTinyIfRequired && f.HideTiny != nil && f.HideTiny() && f.Tiny.IsTinyOrScam(a) {
		return false
	}
	return true
}

// Apply returns the visible subset of activities, preserving order.
func (f Filter) Apply(activities []Activity, hideTinyIfRequired bool, scopeSlug string) []Activity {
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if f.Keep(a, hideTinyIfRequired, scopeSlug) {
			out = append(out, a)
		}
	}
	return out
}
