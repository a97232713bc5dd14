package testutil

import "testing"

func TestStringSlicesContainSameValuesIgnoresOrder(t *testing.T) {
	if !StringSlicesContainSameValues([]string{"a", "b", "c"}, []string{"c", "a", "b"}) {
		t.Fatal("expected reordered slices to compare equal")
	}
}

func TestStringSlicesContainSameValuesDetectsDifference(t *testing.T) {
	if StringSlicesContainSameValues([]string{"a", "b"}, []string{"a", "c"}) {
		t.Fatal("expected mismatched slices to compare unequal")
	}
}

func TestStringSlicesContainSameValuesDetectsLengthMismatch(t *testing.T) {
	if StringSlicesContainSameValues([]string{"a", "b"}, []string{"a", "b", "b"}) {
		t.Fatal("expected different-length slices to compare unequal")
	}
}

func TestStringSlicesContainSameValuesEmptyBothSides(t *testing.T) {
	if !StringSlicesContainSameValues(nil, []string{}) {
		t.Fatal("expected two empty slices to compare equal")
	}
}
