// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

// tableMaxLoad is the load factor at which the backing array is grown,
// matching table.c's TABLE_MAX_LOAD.
const tableMaxLoad = 0.75

// entry is one hash-table slot. A nil Key with a true Value marks a
// tombstone: a deleted entry that must keep probing alive for later
// lookups, matching table.c's tombstone encoding.
type entry struct {
	key   *ObjString
	value Value
}

// Table is an open-addressed hash table keyed by interned strings, with
// linear probing and tombstone-based deletion, ported directly from
// table.c's findEntry/adjustCapacity/tableGet/tableSet/tableDelete.
type Table struct {
	count   int // live entries plus tombstones
	entries []entry
}

func NewTable() *Table {
	return &Table{}
}

// Count reports the number of occupied slots, tombstones included; it
// drops back to the live-entry count only when the table is resized.
func (t *Table) Count() int {
	return t.count
}

func findEntry(entries []entry, key *ObjString) *entry {
	capacity := uint32(len(entries))
	index := key.Hash & (capacity - 1)
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
		index = (index + 1) & (capacity - 1)
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]entry, capacity)
	for i := range entries {
		entries[i] = entry{key: nil, value: Nil}
	}

	t.count = 0
	for _, old := range t.entries {
		if old.key == nil {
			continue
		}
		dst := findEntry(entries, old.key)
		dst.key = old.key
		dst.value = old.value
		t.count++
	}
	t.entries = entries
}

// Get looks up key, reporting whether it was found.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if t.count == 0 {
		return Nil, false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return Nil, false
	}
	return e.value, true
}

// Set inserts or overwrites key's value, reporting whether this created a
// brand new entry (as opposed to overwriting an existing one).
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		capacity := growCapacity(len(t.entries))
		t.adjustCapacity(capacity)
	}

	e := findEntry(t.entries, key)
	isNew := e.key == nil
	if isNew && e.value.IsNil() {
		t.count++
	}
	e.key = key
	e.value = value
	return isNew
}

// Delete removes key, leaving a tombstone behind so later probes past it
// still terminate correctly.
func (t *Table) Delete(key *ObjString) bool {
	if t.count == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = BoolVal(true)
	return true
}

// AddAll copies every live entry of from into t, used when a subclass
// inherits its superclass's methods.
func (t *Table) AddAll(from *Table) {
	for _, e := range from.entries {
		if e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// FindString looks up a string by its content, hash, and length without
// allocating a new ObjString, the way the intern table deduplicates
// identical string literals.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if t.count == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	index := hash & (capacity - 1)
	for {
		e := &t.entries[index]
		if e.key == nil {
			if e.value.IsNil() {
				return nil
			}
		} else if e.key.Hash == hash && e.key.Chars == chars {
			return e.key
		}
		index = (index + 1) & (capacity - 1)
	}
}

// markTable marks every live key and value for the collector.
func (t *Table) markTable(vm *VM) {
	for i := range t.entries {
		if t.entries[i].key != nil {
			vm.markObject(t.entries[i].key)
			vm.markValue(t.entries[i].value)
		}
	}
}

// removeWhite drops any interned string the sweep phase is about to
// reclaim, so the intern table never resurrects a dead string.
func (t *Table) removeWhite() {
	for i := range t.entries {
		if t.entries[i].key != nil && !t.entries[i].key.Marked {
			t.entries[i].key = nil
			t.entries[i].value = BoolVal(true)
		}
	}
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}
