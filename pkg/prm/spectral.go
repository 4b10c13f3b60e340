package prm

import "strings"

// ReduceSpectralSubset turns a band mask such as "1 0 1" or "101" into one
// "1" per selected band, space separated. Positions are dropped: after
// mosaicking only the selected bands remain, so every remaining band is
// selected.
func ReduceSpectralSubset(subset string) string {
	n := strings.Count(subset, "1")
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("1 ", n), " ")
}

// ExtractFromParentheses returns the trimmed text between the first "("
// and the following ")". ok is false when either is missing.
func ExtractFromParentheses(s string) (string, bool) {
	start := strings.Index(s, "(")
	if start == -1 {
		return "", false
	}
	end := strings.Index(s[start+1:], ")")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(s[start+1 : start+1+end]), true
}
