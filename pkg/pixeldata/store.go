package pixeldata

import (
	"fmt"
	"iter"
)

// Handle addresses an entry in a Store. Handles are checked against a
// generation so a handle to a destroyed entry never resolves to a newer one.
// The zero Handle refers to nothing.
type Handle struct {
	slot int
	gen  uint64
}

// IsZero returns true for the "none" handle
func (h Handle) IsZero() bool {
	return h.gen == 0
}

type slot struct {
	entry *Entry
	gen   uint64
}

// Store is the set of representations of one pixel data element. At most one
// entry per conforming key is held. Original, when set, and current, whenever
// the store is not empty, always refer to live entries.
type Store struct {
	slots    []slot
	live     int
	nextGen  uint64
	original Handle
	current  Handle
}

// Len is the number of stored representations
func (s *Store) Len() int {
	return s.live
}

// Entry resolves a handle
func (s *Store) Entry(h Handle) (*Entry, error) {
	if !s.valid(h) {
		return nil, fmt.Errorf("stale handle: %w", ErrRepresentationNotFound)
	}
	return s.slots[h.slot].entry, nil
}

// Original returns the handle of the original representation, if any
func (s *Store) Original() (Handle, bool) {
	return s.original, s.valid(s.original)
}

// Current returns the handle of the current representation, if any
func (s *Store) Current() (Handle, bool) {
	return s.current, s.valid(s.current)
}

// All iterates the live entries in slot order
func (s *Store) All() iter.Seq2[Handle, *Entry] {
	return func(yield func(Handle, *Entry) bool) {
		for i, sl := range s.slots {
			if sl.entry == nil {
				continue
			}
			if !yield(Handle{slot: i, gen: sl.gen}, sl.entry) {
				return
			}
		}
	}
}

// FindConforming returns the first entry whose key conforms to key
func (s *Store) FindConforming(key Key) (Handle, bool) {
	for h, e := range s.All() {
		if e.key.ConformsTo(key) {
			return h, true
		}
	}
	return Handle{}, false
}

// InsertOrReplace stores e. A conforming entry is replaced in place and keeps
// its handle, so original/current references follow the replacement.
func (s *Store) InsertOrReplace(e *Entry) Handle {
	if h, ok := s.FindConforming(e.key); ok {
		s.slots[h.slot].entry = e
		return h
	}
	h := s.alloc(e)
	if s.live == 1 {
		s.current = h
	}
	return h
}

// SetOriginal destroys every entry and keeps e as the sole, original and current one
func (s *Store) SetOriginal(e *Entry) Handle {
	s.Clear()
	h := s.alloc(e)
	s.original = h
	s.current = h
	return h
}

// SetCurrent selects an existing entry as current
func (s *Store) SetCurrent(h Handle) error {
	if !s.valid(h) {
		return fmt.Errorf("set current: %w", ErrRepresentationNotFound)
	}
	s.current = h
	return nil
}

// RemoveConforming destroys the entry conforming to key. The original cannot be
// removed this way. If the removed entry was current, current falls back to
// the original.
func (s *Store) RemoveConforming(key Key) error {
	if orig, ok := s.Original(); ok && s.slots[orig.slot].entry.key.ConformsTo(key) {
		return fmt.Errorf("remove %s: is the original representation: %w", key, ErrIllegalCall)
	}
	h, ok := s.FindConforming(key)
	if !ok {
		return fmt.Errorf("remove %s: %w", key, ErrRepresentationNotFound)
	}
	wasCurrent := h == s.current
	s.destroy(h)
	if wasCurrent {
		s.current = s.fallback()
	}
	return nil
}

// RetainOnly destroys every entry but h, which becomes original and current
func (s *Store) RetainOnly(h Handle) error {
	if !s.valid(h) {
		return fmt.Errorf("retain: %w", ErrRepresentationNotFound)
	}
	for other := range s.All() {
		if other != h {
			s.destroy(other)
		}
	}
	s.original = h
	s.current = h
	return nil
}

// ReplaceOriginal makes the entry conforming to key the original. The previous
// original is destroyed unless it is also current, in which case it stays as
// an ordinary entry.
func (s *Store) ReplaceOriginal(key Key) error {
	h, ok := s.FindConforming(key)
	if !ok {
		return fmt.Errorf("replace original with %s: %w", key, ErrRepresentationNotFound)
	}
	old := s.original
	s.original = h
	if old != h && s.valid(old) && old != s.current {
		s.destroy(old)
	}
	return nil
}

// Clear destroys every entry and resets original and current to none
func (s *Store) Clear() {
	s.slots = nil
	s.live = 0
	s.original = Handle{}
	s.current = Handle{}
}

// Clone deep copies the store; handles issued by s remain valid on the copy
func (s *Store) Clone() *Store {
	res := &Store{
		slots:    make([]slot, len(s.slots)),
		live:     s.live,
		nextGen:  s.nextGen,
		original: s.original,
		current:  s.current,
	}
	for i, sl := range s.slots {
		res.slots[i].gen = sl.gen
		if sl.entry != nil {
			res.slots[i].entry = sl.entry.clone()
		}
	}
	return res
}

func (s *Store) valid(h Handle) bool {
	return h.gen != 0 && h.slot >= 0 && h.slot < len(s.slots) &&
		s.slots[h.slot].entry != nil && s.slots[h.slot].gen == h.gen
}

func (s *Store) alloc(e *Entry) Handle {
	s.nextGen++
	s.live++
	for i := range s.slots {
		if s.slots[i].entry == nil {
			s.slots[i] = slot{entry: e, gen: s.nextGen}
			return Handle{slot: i, gen: s.nextGen}
		}
	}
	s.slots = append(s.slots, slot{entry: e, gen: s.nextGen})
	return Handle{slot: len(s.slots) - 1, gen: s.nextGen}
}

func (s *Store) destroy(h Handle) {
	s.slots[h.slot] = slot{}
	s.live--
	if h == s.original {
		s.original = Handle{}
	}
	if h == s.current {
		s.current = Handle{}
	}
}

// fallback picks the original, else the first live entry, else none
func (s *Store) fallback() Handle {
	if s.valid(s.original) {
		return s.original
	}
	for h := range s.All() {
		return h
	}
	return Handle{}
}
