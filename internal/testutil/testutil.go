// Package testutil holds small comparison helpers shared across this
// module's table-driven tests.
package testutil

import "sort"

// StringSlicesContainSameValues reports whether expected and actual hold
// the same multiset of strings, ignoring order. The original
// implementation this is modeled on sorted one copy and then compared it
// against itself, which always returns true; this version sorts
// independent copies of both slices before comparing element by element.
func StringSlicesContainSameValues(expected, actual []string) bool {
	if len(expected) != len(actual) {
		return false
	}
	sortedExpected := append([]string(nil), expected...)
	sortedActual := append([]string(nil), actual...)
	sort.Strings(sortedExpected)
	sort.Strings(sortedActual)
	for i := range sortedExpected {
		if sortedExpected[i] != sortedActual[i] {
			return false
		}
	}
	return true
}
