package testutil

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/feedsync/internal/activity"
)

// Tx builds a confirmed outgoing toncoin transaction.
func Tx(hash string, ts int64) activity.Activity {
	return activity.Activity{
		Kind:        activity.KindTransaction,
		ID:          activity.TransactionID(hash, 0),
		Timestamp:   ts,
		Slug:        "toncoin",
		FromAddress: "EQ-self",
		ToAddress:   "EQ-peer",
		Amount:      decimal.NewFromInt(1),
	}
}

// Incoming builds a confirmed incoming transfer of amount from sender.
func Incoming(hash string, ts int64, slug, sender, amount string) activity.Activity {
	return activity.Activity{
		Kind:        activity.KindTransaction,
		ID:          activity.TransactionID(hash, 0),
		Timestamp:   ts,
		Slug:        slug,
		FromAddress: sender,
		ToAddress:   "EQ-self",
		IsIncoming:  true,
		Amount:      decimal.RequireFromString(amount),
	}
}

// Swap builds a completed swap.
func Swap(backendID string, ts int64, from, to string) activity.Activity {
	return activity.Activity{
		Kind:       activity.KindSwap,
		ID:         activity.SwapID(backendID),
		Timestamp:  ts,
		From:       from,
		To:         to,
		FromAmount: decimal.NewFromInt(10),
		ToAmount:   decimal.NewFromInt(20),
		Status:     activity.SwapStatusCompleted,
	}
}

// Local builds an optimistic local transaction.
func Local(ts int64) activity.Activity {
	a := Tx("local", ts)
	a.ID = activity.NewLocalID()
	a.IsLocal = true
	return a
}

// History builds n transactions on tl, newest first. Hashes are "tx000",
// "tx001", ...
func History(n int, tl *Timeline) []activity.Activity {
	out := make([]activity.Activity, n)
	for i := range out {
		out[i] = Tx(fmt.Sprintf("tx%03d", i), tl.Next())
	}
	return out
}
