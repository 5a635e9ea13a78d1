package value

const tableMaxLoad = 0.75

type entry struct {
	key   *String
	value Value
}

// Table is an open-addressed hash map keyed by interned strings, using
// linear probing over a power-of-two capacity.
//
// A slot with a nil key and a nil value is empty; a nil key with the value
// true is a tombstone left by Delete so probe chains stay intact. Tombstones
// count towards the load factor until the next resize drops them.
type Table struct {
	count   int // live entries plus tombstones
	entries []entry
}

// Len reports the number of live entries.
func (t *Table) Len() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].key != nil {
			n++
		}
	}
	return n
}

// Count reports live entries plus tombstones, the figure the load factor is
// computed from.
func (t *Table) Count() int { return t.count }

// Capacity reports the size of the entry array.
func (t *Table) Capacity() int { return len(t.entries) }

// Get looks up key.
func (t *Table) Get(key *String) (Value, bool) {
	if t.count == 0 {
		return Nil(), false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return Nil(), false
	}
	return e.value, true
}

// Set binds key to v and reports whether key was not present before.
func (t *Table) Set(key *String, v Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.adjustCapacity(growCapacity(len(t.entries)))
	}
	e := findEntry(t.entries, key)
	isNew := e.key == nil
	// reusing a tombstone does not change count
	if isNew && e.value.IsNil() {
		t.count++
	}
	e.key = key
	e.value = v
	return isNew
}

// Delete removes key, leaving a tombstone. It reports whether key was
// present.
func (t *Table) Delete(key *String) bool {
	if t.count == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = Bool(true)
	return true
}

// AddAll copies every live entry of t into to.
func (t *Table) AddAll(to *Table) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil {
			to.Set(e.key, e.value)
		}
	}
}

// FindString looks up an interned string by content. It is the one lookup
// that compares characters instead of identity.
func (t *Table) FindString(chars string, hash uint32) *String {
	if t.count == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	index := hash & mask
	for {
		e := &t.entries[index]
		if e.key == nil {
			if e.value.IsNil() {
				return nil
			}
		} else if e.key.Hash == hash && e.key.Chars == chars {
			return e.key
		}
		index = (index + 1) & mask
	}
}

// RemoveWhite deletes every entry whose key is not marked. The heap calls
// it on the intern table before sweeping.
func (t *Table) RemoveWhite() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.Marked {
			t.Delete(e.key)
		}
	}
}

// Each calls fn for every live entry.
func (t *Table) Each(fn func(key *String, v Value)) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}

// Free releases the entry array.
func (t *Table) Free() {
	t.count = 0
	t.entries = nil
}

func findEntry(entries []entry, key *String) *entry {
	mask := uint32(len(entries) - 1)
	index := key.Hash & mask
	var tombstone *entry
	for {
		e := &entries[index]
		if e.key == nil {
			if e.value.IsNil() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		index = (index + 1) & mask
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]entry, capacity)
	t.count = 0
	for i := range t.entries {
		e := &t.entries[i]
		if e.key == nil {
			continue
		}
		dest := findEntry(entries, e.key)
		dest.key = e.key
		dest.value = e.value
		t.count++
	}
	t.entries = entries
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}
