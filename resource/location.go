package resource

import (
	"cmp"
	"slices"
)

// LocationKey names one dword of generic stage I/O.
type LocationKey struct {
	Location  uint32
	Component uint32
	// Stream is the geometry shader output stream; 0 elsewhere.
	Stream uint32
}

// Compare orders keys by location, then component, then stream.
func (k LocationKey) Compare(o LocationKey) int {
	if c := cmp.Compare(k.Location, o.Location); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Component, o.Component); c != 0 {
		return c
	}
	return cmp.Compare(k.Stream, o.Stream)
}

// LocationMap maps used I/O keys to tightly packed slots. Each slot holds one
// dword; four consecutive slots form one hardware parameter.
type LocationMap struct {
	used   map[LocationKey]struct{}
	mapped map[LocationKey]uint32
}

// Add records a used key. It invalidates any earlier packing.
func (m *LocationMap) Add(k LocationKey) {
	if m.used == nil {
		m.used = make(map[LocationKey]struct{})
	}
	m.used[k] = struct{}{}
	m.mapped = nil
}

// AddRange records count consecutive components starting at component.
func (m *LocationMap) AddRange(location, component, count, stream uint32) {
	for i := range max(count, 1) {
		m.Add(LocationKey{Location: location, Component: component + i, Stream: stream})
	}
}

// Len returns the number of distinct used keys.
func (m *LocationMap) Len() int { return len(m.used) }

// Keys returns the used keys in ascending order.
func (m *LocationMap) Keys() []LocationKey {
	keys := make([]LocationKey, 0, len(m.used))
	for k := range m.used {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, LocationKey.Compare)
	return keys
}

// Pack assigns slots 0..Len()-1 in ascending key order.
func (m *LocationMap) Pack() {
	m.mapped = make(map[LocationKey]uint32, len(m.used))
	for i, k := range m.Keys() {
		m.mapped[k] = uint32(i)
	}
}

// PackAfter assigns slots from a producer's map: keys the producer also uses
// take its slot, the rest follow the producer's slots in ascending order.
func (m *LocationMap) PackAfter(producer *LocationMap) {
	m.mapped = make(map[LocationKey]uint32, len(m.used))
	next := uint32(producer.Len())
	for _, k := range m.Keys() {
		if slot, ok := producer.Mapped(k); ok {
			m.mapped[k] = slot
			continue
		}
		m.mapped[k] = next
		next++
	}
}

// Mapped returns the packed slot of k.
func (m *LocationMap) Mapped(k LocationKey) (uint32, bool) {
	slot, ok := m.mapped[k]
	return slot, ok
}

// SlotCount returns one past the highest mapped slot.
func (m *LocationMap) SlotCount() uint32 {
	var n uint32
	for _, slot := range m.mapped {
		n = max(n, slot+1)
	}
	return n
}
