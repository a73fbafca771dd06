package ordering

import (
	"reflect"
	"sort"
	"testing"
)

func TestOrderIdentityWithoutShuffle(t *testing.T) {
	got := Order(5, false, 1234)
	if !reflect.DeepEqual(got, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("expected identity, got %v", got)
	}
}

func TestOrderTrivialSizes(t *testing.T) {
	if got := Order(0, true, 42); len(got) != 0 {
		t.Fatalf("expected empty permutation, got %v", got)
	}
	if got := Order(1, true, 42); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("expected [0], got %v", got)
	}
}

func TestOrderIsDeterministic(t *testing.T) {
	seed := int64(1_700_000_123_456)
	first := Order(20, true, seed)
	second := Order(20, true, seed)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed must yield same order: %v vs %v", first, second)
	}

	sorted := append([]int(nil), first...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i {
			t.Fatalf("not a permutation: %v", first)
		}
	}
}

func TestOrderDependsOnSeed(t *testing.T) {
	a := Order(20, true, 1)
	b := Order(20, true, 2)
	if reflect.DeepEqual(a, b) {
		t.Fatalf("different seeds produced the same order %v", a)
	}
}

func TestOrderNegativeSeed(t *testing.T) {
	got := Order(6, true, -99)
	if len(got) != 6 {
		t.Fatalf("expected 6 entries, got %v", got)
	}
}

func TestSectionsSeedsIndependently(t *testing.T) {
	got := Sections([]int{3, 0, 4}, true, 77)
	if len(got) != 3 || len(got[1]) != 0 {
		t.Fatalf("unexpected shape %v", got)
	}
	if !reflect.DeepEqual(got[2], Order(4, true, 79)) {
		t.Fatalf("section 2 should use seed+2")
	}
}
