package livescore

import "sync"

type storeEntry struct {
	rec      Record
	normHome string
	normAway string
	// gen is the refresh cycle that last wrote the key.
	gen uint64
}

// Store holds one current record per key. Iteration follows first insertion
// of each key; overwriting a key keeps its position. It is safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*storeEntry
	order   []string
	gen     uint64
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*storeEntry)}
}

// Put writes r under key, replacing any previous record.
func (s *Store) Put(key string, r Record) {
	s.mu.Lock()
	s.putLocked(key, r)
	s.mu.Unlock()
}

func (s *Store) putLocked(key string, r Record) {
	e, ok := s.entries[key]
	if !ok {
		e = &storeEntry{}
		s.entries[key] = e
		s.order = append(s.order, key)
	}
	e.rec = r
	e.normHome = Normalize(r.HomeTeam)
	e.normAway = Normalize(r.AwayTeam)
	e.gen = s.gen
}

// Apply writes one refresh cycle. Each record goes under its event id, if
// any, and under its composite key, in slice order. It returns the number of
// key writes.
func (s *Store) Apply(records []Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	n := 0
	for _, r := range records {
		if r.EventID != "" {
			s.putLocked(r.EventID, r)
			n++
		}
		if Normalize(r.HomeTeam) != "" && Normalize(r.AwayTeam) != "" {
			s.putLocked(CompositeKey(r.HomeTeam, r.AwayTeam), r)
			n++
		}
	}
	return n
}

func (s *Store) Get(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return Record{}, false
	}
	return e.rec, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every record.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*storeEntry)
	s.order = nil
	s.mu.Unlock()
}

// find returns the first record in insertion order accepted by match.
func (s *Store) find(match func(e *storeEntry) bool) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.order {
		if e := s.entries[k]; match(e) {
			return e.rec, true
		}
	}
	return Record{}, false
}

// Prune removes keys that no Apply has written during the last cycles
// cycles and returns how many were removed. cycles <= 0 is a no-op.
func (s *Store) Prune(cycles int) int {
	if cycles <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	removed := 0
	for _, k := range s.order {
		if s.gen-s.entries[k].gen >= uint64(cycles) {
			delete(s.entries, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	s.order = kept
	return removed
}
