package activity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stubPoison map[string]bool

func (s stubPoison) IsPoisoningAttempt(accountID, address string) bool {
	return s[accountID+"/"+address]
}

func incoming(id, from, amount string) Activity {
	return Activity{
		Kind:        KindTransaction,
		ID:          id,
		Slug:        "toncoin",
		FromAddress: from,
		IsIncoming:  true,
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestFilter_Predicates(t *testing.T) {
	hide := true
	f := Filter{
		AccountID: "acc",
		Poison:    stubPoison{"acc/EQfake": true},
		HideTiny:  func() bool { return hide },
		Tiny:      TinyClassifier{Default: decimal.RequireFromString("0.01")},
	}

	hidden := incoming("hidden:0", "EQok", "5")
	hidden.ShouldHide = true
	scam := incoming("scam:0", "EQok", "5")
	scam.IsScam = true
	swap := Activity{Kind: KindSwap, ID: SwapID("s"), From: "usdt", To: "toncoin"}
	other := Activity{Kind: KindTransaction, ID: "usdt:0", Slug: "usdt"}

	acts := []Activity{
		incoming("ok:0", "EQok", "5"),
		hidden,
		incoming("poison:0", "EQfake", "5"),
		incoming("dust:0", "EQok", "0.001"),
		scam,
		swap,
		other,
	}

	got := f.Apply(acts, true, "toncoin")
	assert.Equal(t, []string{"ok:0", SwapID("s")}, IDs(got))

	got = f.Apply(acts, false, "")
	assert.Equal(t, []string{"ok:0", "dust:0", "scam:0", SwapID("s"), "usdt:0"}, IDs(got))

	hide = false
	got = f.Apply(acts, true, "")
	assert.Equal(t, []string{"ok:0", "dust:0", "scam:0", SwapID("s"), "usdt:0"}, IDs(got))
}

func TestTinyClassifier_PerSlugThreshold(t *testing.T) {
	c := TinyClassifier{
		Default: decimal.RequireFromString("0.01"),
		BySlug:  map[string]decimal.Decimal{"usdt": decimal.RequireFromString("1")},
	}
	usdt := incoming("u:0", "EQx", "0.5")
	usdt.Slug = "usdt"

	assert.True(t, c.IsTinyOrScam(usdt))
	assert.False(t, c.IsTinyOrScam(incoming("t:0", "EQx", "0.5")))

	outgoing := incoming("o:0", "EQx", "0.0001")
	outgoing.IsIncoming = false
	assert.False(t, c.IsTinyOrScam(outgoing), "outgoing transfers are never dust")

	assert.False(t, TinyClassifier{}.IsTinyOrScam(incoming("z:0", "EQx", "0.0001")), "zero threshold disables")
}
