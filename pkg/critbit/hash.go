package critbit

import "github.com/zeebo/xxh3"

// HashString returns the 64-bit key used for s: the low half of its
// seed-0 xxh3 128-bit digest.
func HashString(s string) uint64 {
	return xxh3.HashString128Seed(s, 0).Lo
}

// HashBytes is HashString for a byte slice.
func HashBytes(b []byte) uint64 {
	return xxh3.Hash128Seed(b, 0).Lo
}

// SetString maps the hash of s to v.
func (m *Map) SetString(s string, v uint64) error {
	return m.Set(HashString(s), v)
}

// GetString returns the value stored under the hash of s.
func (m *Map) GetString(s string) (uint64, bool) {
	return m.Get(HashString(s))
}

// HasString reports whether the hash of s is present.
func (m *Map) HasString(s string) bool {
	return m.Has(HashString(s))
}

// DeleteString removes the hash of s.
func (m *Map) DeleteString(s string) bool {
	return m.Delete(HashString(s))
}
