package wsi

import "slices"

// Selection tracks the events the operator has selected. Closed events
// leave the selection automatically, and automatic treatment only fires
// for events that outrank it.
type Selection interface {
	SelectEvents(ids ...string)
	SelectedEvents() []string
}

// SelectEvents replaces the selection.
func (c *client) SelectEvents(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool, len(ids))
	c.selected = c.selected[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			c.selected = append(c.selected, id)
		}
	}
}

// SelectedEvents returns a copy of the selection.
func (c *client) SelectedEvents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.selected)
}

func (c *client) deselectLocked(id string) {
	c.selected = slices.DeleteFunc(c.selected, func(s string) bool { return s == id })
}
