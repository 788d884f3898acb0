// Package plural picks grammatical word forms for counts using the East Slavic rule set.
package plural

import "strconv"

// Form returns one, few or many for n.
// The 11..14 exception is checked before the last-digit rules: 11 ends in 1 but takes "many".
func Form(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	if mod100 := n % 100; mod100 >= 11 && mod100 <= 14 {
		return many
	}
	switch mod10 := n % 10; {
	case mod10 == 1:
		return one
	case mod10 >= 2 && mod10 <= 4:
		return few
	default:
		return many
	}
}

// Count renders "n form", e.g. "21 статья".
func Count(n int, one, few, many string) string {
	return strconv.Itoa(n) + " " + Form(n, one, few, many)
}
