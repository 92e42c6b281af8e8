package activity

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupOf(acts ...Activity) Lookup {
	m := make(map[string]Activity, len(acts))
	for _, a := range acts {
		m[a.ID] = a
	}
	return func(id string) (Activity, bool) {
		a, ok := m[id]
		return a, ok
	}
}

func tx(id string, ts int64) Activity {
	return Activity{Kind: KindTransaction, ID: id, Timestamp: ts, Slug: "toncoin"}
}

func TestCompare_TimestampDescending(t *testing.T) {
	newer := tx("a:0", 200)
	older := tx("b:0", 100)

	assert.Negative(t, Compare(newer, older))
	assert.Positive(t, Compare(older, newer))
}

func TestCompare_TieBreaksOnIDDescending(t *testing.T) {
	a := tx("aaa:0", 100)
	b := tx("bbb:0", 100)

	assert.Positive(t, Compare(a, b), "aaa sorts after bbb")
	assert.Negative(t, Compare(b, a))
	assert.Zero(t, Compare(a, a))
}

func TestCompare_TotalOrderOnRandomSamples(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	gen := func() Activity {
		return tx("h"+strconv.Itoa(rng.Intn(50))+":"+strconv.Itoa(rng.Intn(3)), int64(rng.Intn(5)))
	}

	for i := 0; i < 500; i++ {
		a, b, c := gen(), gen(), gen()

		if a.ID != b.ID {
			assert.NotZero(t, Compare(a, b))
			assert.Equal(t, Compare(a, b), -Compare(b, a), "antisymmetry for %s/%s", a.ID, b.ID)
		}
		if Compare(a, b) < 0 && Compare(b, c) < 0 {
			assert.Negative(t, Compare(a, c), "transitivity for %s<%s<%s", a.ID, b.ID, c.ID)
		}
	}
}

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	assert.Equal(t, []string{"c", "a", "b"}, Dedupe([]string{"c", "a", "c", "b", "a"}))
	assert.Empty(t, Dedupe(nil))
}

func TestMergeUnbounded_UnionSortedWithoutDuplicates(t *testing.T) {
	acts := []Activity{tx("a:0", 500), tx("b:0", 400), tx("c:0", 300), tx("d:0", 200)}
	byID := lookupOf(acts...)

	got := MergeUnbounded([]string{"d:0", "b:0"}, []string{"c:0", "a:0", "b:0"}, byID)

	assert.Equal(t, []string{"a:0", "b:0", "c:0", "d:0"}, got)
}

func TestMergeUnbounded_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var acts []Activity
	for i := 0; i < 40; i++ {
		acts = append(acts, tx("h"+strconv.Itoa(i)+":0", int64(rng.Intn(10))))
	}
	byID := lookupOf(acts...)

	for round := 0; round < 50; round++ {
		var ids []string
		for i := 0; i < rng.Intn(30); i++ {
			ids = append(ids, acts[rng.Intn(len(acts))].ID)
		}
		assert.Equal(t, SortIDs(ids, byID), MergeUnbounded(ids, ids, byID))
	}
}

func TestMergeUnbounded_MissingLookupSortsAsZeroTimestamp(t *testing.T) {
	byID := lookupOf(tx("a:0", 10))

	got := MergeUnbounded([]string{"ghost:0"}, []string{"a:0"}, byID)

	assert.Equal(t, []string{"a:0", "ghost:0"}, got)
}

func TestMergeWithCutoff_BothEmpty(t *testing.T) {
	got := MergeWithCutoff(nil, nil, nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMergeWithCutoff_DropsRangeBelowShallowerList(t *testing.T) {
	// new snapshot reaches back to ts=300; existing state to ts=100
	acts := []Activity{
		tx("n1:0", 600), tx("n2:0", 400), tx("n3:0", 300),
		tx("e1:0", 500), tx("e2:0", 350), tx("e3:0", 200), tx("e4:0", 100),
	}
	byID := lookupOf(acts...)

	got := MergeWithCutoff(
		[]string{"n1:0", "n2:0", "n3:0"},
		[]string{"e1:0", "e2:0", "e3:0", "e4:0"},
		byID,
	)

	assert.Equal(t, []string{"n1:0", "e1:0", "n2:0", "e2:0", "n3:0"}, got)
}

func TestMergeWithCutoff_EmptySideDoesNotCut(t *testing.T) {
	byID := lookupOf(tx("a:0", 30), tx("b:0", 20), tx("c:0", 10))

	got := MergeWithCutoff(nil, []string{"a:0", "b:0", "c:0"}, byID)

	assert.Equal(t, []string{"a:0", "b:0", "c:0"}, got)
}

func TestMergeWithCutoff_RetainedIDsRespectCutoff(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	var acts []Activity
	for i := 0; i < 60; i++ {
		acts = append(acts, tx("h"+strconv.Itoa(i)+":0", int64(rng.Intn(1000))))
	}
	byID := lookupOf(acts...)
	pick := func() []string {
		var ids []string
		for i := 0; i < rng.Intn(20); i++ {
			ids = append(ids, acts[rng.Intn(len(acts))].ID)
		}
		return SortIDs(ids, byID)
	}

	for round := 0; round < 100; round++ {
		newIDs, existingIDs := pick(), pick()
		cutoff := max(lastTimestamp(newIDs, byID), lastTimestamp(existingIDs, byID))

		got := MergeWithCutoff(newIDs, existingIDs, byID)

		assert.Equal(t, Dedupe(got), got, "no duplicates")
		for _, id := range got {
			a, _ := byID(id)
			assert.GreaterOrEqual(t, a.Timestamp, cutoff)
		}
	}
}

func TestOldestOf_SkipsIneligible(t *testing.T) {
	local := Activity{Kind: KindTransaction, ID: "local:1", Timestamp: 5, IsLocal: true}
	pending := Activity{Kind: KindTransaction, ID: "p:0", Timestamp: 4, IsPending: true}
	byID := lookupOf(tx("a:0", 10), tx("b:0", 8), local, pending)

	got, ok := OldestOf([]string{"a:0", "b:0", "local:1", "p:0"}, byID)
	require.True(t, ok)
	assert.Equal(t, "b:0", got.ID)

	_, ok = OldestOf([]string{"local:1", "p:0", "missing"}, byID)
	assert.False(t, ok)
}
