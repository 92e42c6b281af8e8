package store

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/roach88/feedsync/internal/activity"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTransaction creates a toncoin transfer with minimal fields.
func createTestTransaction(id string, ts int64) activity.Activity {
	return activity.Activity{
		Kind:        activity.KindTransaction,
		ID:          id,
		Timestamp:   ts,
		Slug:        "toncoin",
		FromAddress: "EQsender0000000000001",
		IsIncoming:  true,
		Amount:      decimal.NewFromInt(1),
	}
}

// createTestSwap creates a completed swap between two slugs.
func createTestSwap(id string, ts int64, from, to string) activity.Activity {
	return activity.Activity{
		Kind:       activity.KindSwap,
		ID:         activity.SwapID(id),
		Timestamp:  ts,
		From:       from,
		To:         to,
		FromAmount: decimal.NewFromInt(10),
		ToAmount:   decimal.NewFromInt(20),
		Status:     activity.SwapStatusCompleted,
	}
}
