package activity

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// wireActivity is the persisted form of an Activity.
// Field order is fixed so the encoding is byte-stable.
type wireActivity struct {
	Kind       Kind       `json:"kind"`
	ID         string     `json:"id"`
	Timestamp  int64      `json:"timestamp"`
	IsLocal    bool       `json:"is_local,omitempty"`
	IsPending  bool       `json:"is_pending,omitempty"`
	ShouldHide bool       `json:"should_hide,omitempty"`
	Slug       string     `json:"slug,omitempty"`
	From       string     `json:"from,omitempty"`
	To         string     `json:"to,omitempty"`
	FromAddr   string     `json:"from_address,omitempty"`
	ToAddr     string     `json:"to_address,omitempty"`
	IsIncoming bool       `json:"is_incoming,omitempty"`
	IsScam     bool       `json:"is_scam,omitempty"`
	Amount     string     `json:"amount,omitempty"`
	FromAmount string     `json:"from_amount,omitempty"`
	ToAmount   string     `json:"to_amount,omitempty"`
	Status     SwapStatus `json:"status,omitempty"`
	Comment    string     `json:"comment,omitempty"`
}

// MarshalCanonical encodes a for the persistent cache.
//
// IDs, slugs and addresses are stored byte for byte: they are compared
// exactly by the feed and the poisoning detector. Free text is NFC
// normalized. HTML characters are not escaped.
func MarshalCanonical(a Activity) ([]byte, error) {
	if a.ID == "" {
		return nil, fmt.Errorf("marshal activity: empty id")
	}
	w := wireActivity{
		Kind:       a.Kind,
		ID:         a.ID,
		Timestamp:  a.Timestamp,
		IsLocal:    a.IsLocal,
		IsPending:  a.IsPending,
		ShouldHide: a.ShouldHide,
		Slug:       a.Slug,
		From:       a.From,
		To:         a.To,
		FromAddr:   a.FromAddress,
		ToAddr:     a.ToAddress,
		IsIncoming: a.IsIncoming,
		IsScam:     a.IsScam,
		Amount:     decimalString(a.Amount),
		FromAmount: decimalString(a.FromAmount),
		ToAmount:   decimalString(a.ToAmount),
		Status:     a.Status,
		Comment:    norm.NFC.String(a.Comment),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, fmt.Errorf("marshal activity %s: %w", a.ID, err)
	}
	// json.Encoder adds trailing newline, remove it
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalCanonical decodes bytes produced by MarshalCanonical.
func UnmarshalCanonical(data []byte) (Activity, error) {
	var w wireActivity
	if err := json.Unmarshal(data, &w); err != nil {
		return Activity{}, fmt.Errorf("unmarshal activity: %w", err)
	}
	amount, err := parseDecimal(w.Amount)
	if err != nil {
		return Activity{}, fmt.Errorf("unmarshal activity %s: amount: %w", w.ID, err)
	}
	fromAmount, err := parseDecimal(w.FromAmount)
	if err != nil {
		return Activity{}, fmt.Errorf("unmarshal activity %s: from_amount: %w", w.ID, err)
	}
	toAmount, err := parseDecimal(w.ToAmount)
	if err != nil {
		return Activity{}, fmt.Errorf("unmarshal activity %s: to_amount: %w", w.ID, err)
	}
	return Activity{
		Kind:        w.Kind,
		ID:          w.ID,
		Timestamp:   w.Timestamp,
		IsLocal:     w.IsLocal,
		IsPending:   w.IsPending,
		ShouldHide:  w.ShouldHide,
		Slug:        w.Slug,
		FromAddress: w.FromAddr,
		ToAddress:   w.ToAddr,
		IsIncoming:  w.IsIncoming,
		Amount:      amount,
		IsScam:      w.IsScam,
		Comment:     w.Comment,
		From:        w.From,
		To:          w.To,
		FromAmount:  fromAmount,
		ToAmount:    toAmount,
		Status:      w.Status,
	}, nil
}

func decimalString(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
