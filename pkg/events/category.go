package events

// Category is an event category as served by the WSI lookup endpoint.
// Lower ids are more severe.
type Category struct {
	ID          int    `json:"CategoryId" yaml:"id"`
	Descriptor  string `json:"CategoryDescriptor" yaml:"descriptor"`
	Color       string `json:"Color,omitempty" yaml:"color,omitempty"`              // unprocessed color
	ColorActive string `json:"ColorActive,omitempty" yaml:"color_active,omitempty"` // processed, source still active
	ColorQuiet  string `json:"ColorQuiet,omitempty" yaml:"color_quiet,omitempty"`   // processed, source quiet
	Sound       string `json:"Sound,omitempty" yaml:"sound,omitempty"`              // optional alert sound
}

// ColorFor picks the display color of an event in this category.
func (c *Category) ColorFor(ev *Event) string {
	if c == nil {
		return ""
	}
	switch {
	case ev.StateID == StateUnprocessed || ev.StateID == StateUnprocessedWithTimer:
		return c.Color
	case ev.SrcStateID == SrcStateQuiet && c.ColorQuiet != "":
		return c.ColorQuiet
	case c.ColorActive != "":
		return c.ColorActive
	}
	return c.Color
}
