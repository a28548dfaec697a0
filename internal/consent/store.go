package consent

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidLevel = errors.New("consent: invalid level")
	ErrNotOwner     = errors.New("consent: only the owning entity may edit its preferences")
	ErrNoStore      = errors.New("consent: entity has no preference store")
)

// PreferenceMap maps topic ids to levels. A missing key means Ask.
type PreferenceMap map[TopicID]Level

func (m PreferenceMap) Clone() PreferenceMap {
	out := make(PreferenceMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Topics returns the map's keys in sorted order.
func (m PreferenceMap) Topics() []TopicID {
	out := make([]TopicID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m PreferenceMap) Equal(o PreferenceMap) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Store holds one entity's preferences. A nil *Store behaves as an empty map.
type Store struct {
	prefs PreferenceMap
}

func NewStore(initial PreferenceMap) *Store {
	s := &Store{prefs: PreferenceMap{}}
	for k, v := range initial {
		if !v.Valid() {
			continue
		}
		s.prefs[k] = v
	}
	return s
}

func (s *Store) Get(topic TopicID) Level {
	if s == nil {
		return Ask
	}
	if l, ok := s.prefs[topic]; ok {
		return l
	}
	return Ask
}

func (s *Store) Has(topic TopicID) bool {
	if s == nil {
		return false
	}
	_, ok := s.prefs[topic]
	return ok
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.prefs)
}

func (s *Store) Set(topic TopicID, level Level) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, int(level))
	}
	if s == nil {
		return ErrNoStore
	}
	s.prefs[topic] = level
	return nil
}

// Snapshot returns a copy safe to hand to other goroutines.
func (s *Store) Snapshot() PreferenceMap {
	if s == nil {
		return PreferenceMap{}
	}
	return s.prefs.Clone()
}

func (s *Store) addIfAbsent(topic TopicID, level Level) bool {
	if _, ok := s.prefs[topic]; ok {
		return false
	}
	s.prefs[topic] = level
	return true
}
