package activity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind discriminates the activity variants.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindSwap        Kind = "swap"
)

// SwapStatus is the backend lifecycle state of a swap.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusCompleted SwapStatus = "completed"
	SwapStatusFailed    SwapStatus = "failed"
	SwapStatusExpired   SwapStatus = "expired"
)

const (
	swapIDPrefix  = "swap:"
	localIDPrefix = "local:"
)

// Activity is a single entry of a wallet history.
//
// Transaction fields (Slug, FromAddress, ToAddress, IsIncoming, Amount,
// IsScam) are meaningful only for KindTransaction; swap fields (From, To,
// FromAmount, ToAmount, Status) only for KindSwap.
type Activity struct {
	Kind      Kind
	ID        string
	Timestamp int64 // epoch milliseconds

	IsLocal    bool // optimistic entry created on this device
	IsPending  bool // submitted but not yet confirmed
	ShouldHide bool

	Slug        string
	FromAddress string
	ToAddress   string
	IsIncoming  bool
	Amount      decimal.Decimal
	IsScam      bool
	Comment     string

	From       string
	To         string
	FromAmount decimal.Decimal
	ToAmount   decimal.Decimal
	Status     SwapStatus
}

// IsTimestampEligible reports whether the activity may anchor a pagination
// cursor. Local, pending and ID-less placeholder entries carry timestamps the
// backend does not know about.
func (a Activity) IsTimestampEligible() bool {
	return !a.IsLocal && !a.IsPending && a.ID != ""
}

// BelongsTo reports whether the activity is part of the token feed slug.
// An empty slug is the all-activities feed.
func (a Activity) BelongsTo(slug string) bool {
	if slug == "" {
		return true
	}
	if a.Kind == KindSwap {
		return a.From == slug || a.To == slug
	}
	return a.Slug == slug
}

// IsIncomingTransfer reports whether the activity moved funds into the wallet.
func (a Activity) IsIncomingTransfer() bool {
	return a.Kind == KindTransaction && a.IsIncoming && a.FromAddress != ""
}

// TransactionID encodes the ID of an on-chain transaction.
// Format: "{txHash}:{logicalIndex}". Persisted caches depend on it.
func TransactionID(txHash string, index int) string {
	return txHash + ":" + strconv.Itoa(index)
}

// ParseTransactionID splits an on-chain transaction ID into hash and index.
func ParseTransactionID(id string) (string, int, error) {
	if IsSwapID(id) || IsLocalID(id) {
		return "", 0, fmt.Errorf("not a transaction id: %q", id)
	}
	i := strings.LastIndexByte(id, ':')
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("malformed transaction id: %q", id)
	}
	index, err := strconv.Atoi(id[i+1:])
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("malformed transaction index in %q", id)
	}
	return id[:i], index, nil
}

// SwapID namespaces a backend swap ID so it cannot collide with a tx hash.
func SwapID(backendID string) string {
	return swapIDPrefix + backendID
}

// IsSwapID reports whether id was produced by SwapID.
func IsSwapID(id string) bool {
	return strings.HasPrefix(id, swapIDPrefix)
}

// NewLocalID returns a time-sortable ID for an optimistic local activity.
func NewLocalID() string {
	return localIDPrefix + uuid.Must(uuid.NewV7()).String()
}

// IsLocalID reports whether id was produced by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// IDs returns the IDs of activities in order.
func IDs(activities []Activity) []string {
	ids := make([]string, len(activities))
	for i, a := range activities {
		ids[i] = a.ID
	}
	return ids
}
