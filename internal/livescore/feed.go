package livescore

import (
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var feedJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Providers wrap the event array differently; the first key holding an
// array wins.
var feedArrayKeys = []string{"events", "livescore", "livescores", "data", "results", "games", "matches"}

var (
	eventIDKeys   = []string{"idEvent", "eventId", "event_id", "id"}
	homeTeamKeys  = []string{"strHomeTeam", "homeTeam", "home_team", "home"}
	awayTeamKeys  = []string{"strAwayTeam", "awayTeam", "away_team", "away"}
	homeScoreKeys = []string{"intHomeScore", "homeScore", "home_score"}
	awayScoreKeys = []string{"intAwayScore", "awayScore", "away_score"}
	progressKeys  = []string{"strProgress", "progress", "strStatus", "status"}
)

var errNoEventArray = errors.New("feed has no event array")

// decodeFeed extracts records from a category feed. Malformed events are
// skipped, and missing fields fall back to empty values or the score
// sentinel.
func decodeFeed(c Category, payload []byte) ([]Record, error) {
	root := feedJSON.Get(payload)
	var events jsoniter.Any
	switch root.ValueType() {
	case jsoniter.ArrayValue:
		events = root
	case jsoniter.ObjectValue:
		sawKey := false
		for _, k := range feedArrayKeys {
			v := root.Get(k)
			switch v.ValueType() {
			case jsoniter.ArrayValue:
				events = v
			case jsoniter.NilValue:
				sawKey = true
			}
			if events != nil {
				break
			}
		}
		if events == nil {
			if sawKey {
				// {"livescore": null} means nothing is live.
				return nil, nil
			}
			return nil, errNoEventArray
		}
	case jsoniter.NilValue:
		return nil, nil
	default:
		return nil, errNoEventArray
	}

	records := make([]Record, 0, events.Size())
	for i := 0; i < events.Size(); i++ {
		ev := events.Get(i)
		if ev.ValueType() != jsoniter.ObjectValue {
			continue
		}
		r := Record{
			Category:  c,
			EventID:   firstString(ev, eventIDKeys),
			HomeTeam:  firstString(ev, homeTeamKeys),
			AwayTeam:  firstString(ev, awayTeamKeys),
			HomeScore: firstScore(ev, homeScoreKeys),
			AwayScore: firstScore(ev, awayScoreKeys),
			Progress:  firstString(ev, progressKeys),
		}
		if r.EventID == "" && (r.HomeTeam == "" || r.AwayTeam == "") {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func firstString(ev jsoniter.Any, keys []string) string {
	for _, k := range keys {
		v := ev.Get(k)
		switch v.ValueType() {
		case jsoniter.StringValue, jsoniter.NumberValue:
			if s := strings.TrimSpace(v.ToString()); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstScore(ev jsoniter.Any, keys []string) Score {
	for _, k := range keys {
		v := ev.Get(k)
		switch v.ValueType() {
		case jsoniter.NumberValue, jsoniter.StringValue:
			return parseScore(v.ToString())
		}
	}
	return Score{}
}
