package livescore

import (
	"strings"
	"unicode/utf8"
)

var punctuation = strings.NewReplacer(".", "", "'", "", "’", "")

// Normalize folds a team name into the form used for keys and fuzzy
// matching: lower case, no periods or apostrophes, single spaces, and no
// leading or trailing "fc" token. Normalize(Normalize(s)) == Normalize(s).
//
// Punctuation goes first and every leading or trailing "fc" is stripped, so
// "F.C. Porto" and "FC FC Porto" both become "porto". Stripping "fc" before
// removing punctuation would leave "fc porto", which a second pass changes.
func Normalize(name string) string {
	name = punctuation.Replace(strings.ToLower(name))
	fields := strings.Fields(name)
	for len(fields) > 1 && fields[0] == "fc" {
		fields = fields[1:]
	}
	for len(fields) > 1 && fields[len(fields)-1] == "fc" {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// CompositeKey is the store key for a fixture. Reversed fixtures get
// distinct keys.
func CompositeKey(home, away string) string {
	return Normalize(home) + "_" + Normalize(away)
}

// sideMatches reports whether two normalized names plausibly denote the same
// team: one contains the other, or both share a word longer than three
// characters.
func sideMatches(stored, query string) bool {
	if stored == "" || query == "" {
		return false
	}
	if strings.Contains(stored, query) || strings.Contains(query, stored) {
		return true
	}
	words := strings.Fields(stored)
	for _, q := range strings.Fields(query) {
		if utf8.RuneCountInString(q) <= 3 {
			continue
		}
		for _, w := range words {
			if w == q {
				return true
			}
		}
	}
	return false
}
