package wsi

import (
	"slices"

	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/events"
)

// CategorySummary counts the visible events of one category.
type CategorySummary struct {
	CategoryID  int    `json:"categoryId"`
	Descriptor  string `json:"descriptor"`
	Color       string `json:"color,omitempty"`
	Total       int    `json:"total"`
	Unprocessed int    `json:"unprocessed"`
}

// Summary is the light summary of the default view, most severe
// category first. Color is the color of the most severe category with
// unprocessed events, used by the notification center.
type Summary struct {
	Categories []CategorySummary `json:"categories"`
	Color      string            `json:"color,omitempty"`
}

// Summary computes the summary under the default subscription's filter.
func (c *client) Summary() Summary {
	c.mu.Lock()
	view := c.viewLocked(c.subs[constants.DefaultSubscriptionID])
	c.mu.Unlock()

	byID := make(map[int]*CategorySummary)
	for i := range view {
		ev := &view[i]
		s, ok := byID[ev.CategoryID]
		if !ok {
			s = &CategorySummary{CategoryID: ev.CategoryID, Descriptor: ev.CategoryDescriptor}
			if ev.Category != nil {
				s.Descriptor = ev.Category.Descriptor
				s.Color = ev.Category.Color
			}
			byID[ev.CategoryID] = s
		}
		s.Total++
		if ev.StateID == events.StateUnprocessed || ev.StateID == events.StateUnprocessedWithTimer {
			s.Unprocessed++
		}
	}

	out := Summary{Categories: make([]CategorySummary, 0, len(byID))}
	for _, s := range byID {
		out.Categories = append(out.Categories, *s)
	}
	slices.SortFunc(out.Categories, func(a, b CategorySummary) int { return a.CategoryID - b.CategoryID })
	for _, s := range out.Categories {
		if s.Unprocessed > 0 {
			out.Color = s.Color
			break
		}
	}
	return out
}
