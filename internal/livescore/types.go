// Package livescore keeps a keyed store of live match scores fed by
// per-sport feeds, and resolves fixtures against it by event id or by
// loosely spelled team names.
package livescore

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Category is a sport whose live feed is polled.
type Category string

const (
	Soccer     Category = "soccer"
	Basketball Category = "basketball"
	Hockey     Category = "hockey"
	NFL        Category = "nfl"
	Baseball   Category = "baseball"
	Rugby      Category = "rugby"
	Fighting   Category = "fighting"
	Cricket    Category = "cricket"
)

// Categories is the polling order. Records from later categories overwrite
// earlier ones when they share a key.
var Categories = []Category{Soccer, Basketball, Hockey, NFL, Baseball, Rugby, Fighting, Cricket}

// ParseCategory returns the Category named s.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// providerSport maps a category to the sport segment used by TheSportsDB.
var providerSport = map[Category]string{
	Soccer:     "soccer",
	Basketball: "basketball",
	Hockey:     "icehockey",
	NFL:        "americanfootball",
	Baseball:   "baseball",
	Rugby:      "rugby",
	Fighting:   "fighting",
	Cricket:    "cricket",
}

// FeedURLs builds a feed URL resolver from a base URL and per-category
// overrides.
func FeedURLs(base string, overrides map[string]string) func(Category) string {
	base = strings.TrimRight(base, "/")
	return func(c Category) string {
		if u := overrides[string(c)]; u != "" {
			return u
		}
		return base + "/" + providerSport[c]
	}
}

// Score is a match score. The zero value is the "-" sentinel used before a
// match starts or when the feed has no usable value.
type Score struct {
	Value int
	Known bool
}

// Points returns a known score.
func Points(v int) Score { return Score{Value: v, Known: true} }

func (s Score) String() string {
	if !s.Known {
		return "-"
	}
	return strconv.Itoa(s.Value)
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Known {
		return []byte(`"-"`), nil
	}
	return []byte(strconv.Itoa(s.Value)), nil
}

// UnmarshalJSON accepts a number, a numeric string, or anything else as the
// sentinel. It never fails.
func (s *Score) UnmarshalJSON(b []byte) error {
	*s = parseScore(strings.Trim(string(b), `"`))
	return nil
}

func parseScore(raw string) Score {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Score{}
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
		return Points(n)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f >= 0 && f == math.Trunc(f) && f <= math.MaxInt32 {
		return Points(int(f))
	}
	return Score{}
}

// Record is one live match as reported by a feed. Team names keep the
// provider's spelling.
type Record struct {
	Category  Category `json:"category"`
	EventID   string   `json:"eventId,omitempty"`
	HomeTeam  string   `json:"homeTeam"`
	AwayTeam  string   `json:"awayTeam"`
	HomeScore Score    `json:"homeScore"`
	AwayScore Score    `json:"awayScore"`
	Progress  string   `json:"progress"`
}

// MatchScore is what a match subscription publishes.
type MatchScore struct {
	Home     Score  `json:"home"`
	Away     Score  `json:"away"`
	Progress string `json:"progress"`
}
