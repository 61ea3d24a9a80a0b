/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

// Slot is a fixed pickup window. The key is opaque; only its position in the
// catalog carries meaning (it breaks ties when ranking slots).
type Slot struct {
	Key   string `json:"slot" yaml:"key"`
	Label string `json:"label" yaml:"label"`
}

// SlotCatalog is the canonical, ordered list of pickup slots.
type SlotCatalog struct {
	slots []Slot
	index map[string]int
}

// DefaultSlots are the break slots of the reference campus deployment.
func DefaultSlots() []Slot {
	return []Slot{
		{Key: "10:00", Label: "10:00 AM - 10:20 AM"},
		{Key: "12:00", Label: "12:00 PM - 12:30 PM"},
		{Key: "13:00", Label: "1:00 PM - 1:30 PM"},
		{Key: "15:00", Label: "3:00 PM - 3:20 PM"},
	}
}

// NewSlotCatalog builds a catalog preserving the given order. Duplicate keys
// keep their first position.
func NewSlotCatalog(slots []Slot) *SlotCatalog {
	c := &SlotCatalog{
		slots: make([]Slot, 0, len(slots)),
		index: make(map[string]int, len(slots)),
	}
	for _, s := range slots {
		if s.Key == "" {
			continue
		}
		if _, dup := c.index[s.Key]; dup {
			continue
		}
		if s.Label == "" {
			s.Label = s.Key
		}
		c.index[s.Key] = len(c.slots)
		c.slots = append(c.slots, s)
	}
	return c
}

// DefaultSlotCatalog returns a catalog of DefaultSlots.
func DefaultSlotCatalog() *SlotCatalog {
	return NewSlotCatalog(DefaultSlots())
}

// Slots returns a copy of the slots in canonical order.
func (c *SlotCatalog) Slots() []Slot {
	out := make([]Slot, len(c.slots))
	copy(out, c.slots)
	return out
}

// Keys returns slot keys in canonical order.
func (c *SlotCatalog) Keys() []string {
	out := make([]string, len(c.slots))
	for i, s := range c.slots {
		out[i] = s.Key
	}
	return out
}

// Len returns the number of slots.
func (c *SlotCatalog) Len() int {
	return len(c.slots)
}

// Has reports whether key is a configured slot.
func (c *SlotCatalog) Has(key string) bool {
	_, ok := c.index[key]
	return ok
}

// Lookup returns the slot for key.
func (c *SlotCatalog) Lookup(key string) (Slot, bool) {
	i, ok := c.index[key]
	if !ok {
		return Slot{}, false
	}
	return c.slots[i], true
}

// Position returns the canonical index of key, or -1.
func (c *SlotCatalog) Position(key string) int {
	if i, ok := c.index[key]; ok {
		return i
	}
	return -1
}
