// Package filter describes event filters and evaluates events against them.
package filter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/wsi/pkg/errors"
)

// TimePreset selects a creation-time window.
type TimePreset string

// Creation-time presets.
const (
	TimeNone      TimePreset = ""
	TimeLast15Min TimePreset = "last15min"
	TimeLast30Min TimePreset = "last30min"
	TimeLast60Min TimePreset = "last60min"
	TimeLastNight TimePreset = "lastNight"
	TimeYesterday TimePreset = "yesterday"
	TimeToday     TimePreset = "today"
	TimeCustom    TimePreset = "custom"
)

// TimeFilter restricts events by creation time. From and To only apply to
// TimeCustom; a zero bound is open.
type TimeFilter struct {
	Preset TimePreset `json:"preset" yaml:"preset"`
	From   time.Time  `json:"from,omitzero" yaml:"from,omitempty"`
	To     time.Time  `json:"to,omitzero" yaml:"to,omitempty"`
}

// EventFilter is a declarative event predicate. Treat it as a value: the
// registry stores copies. Empty is informational only; the evaluator always
// recomputes it.
type EventFilter struct {
	Categories        []int       `json:"categories,omitempty" yaml:"categories,omitempty"`
	Disciplines       []int       `json:"disciplines,omitempty" yaml:"disciplines,omitempty"`
	States            []string    `json:"states,omitempty" yaml:"states,omitempty"` // state name prefixes
	SrcStates         []string    `json:"srcStates,omitempty" yaml:"src_states,omitempty"`
	SrcSystems        []int       `json:"srcSystems,omitempty" yaml:"src_systems,omitempty"`
	SrcDesignations   []string    `json:"srcDesignations,omitempty" yaml:"src_designations,omitempty"` // "A.B.**" matches A.B and below
	SrcDescriptor     string      `json:"srcDescriptor,omitempty" yaml:"src_descriptor,omitempty"`
	SrcAlias          string      `json:"srcAlias,omitempty" yaml:"src_alias,omitempty"`
	SrcName           string      `json:"srcName,omitempty" yaml:"src_name,omitempty"`
	SrcPropertyID     string      `json:"srcPropertyId,omitempty" yaml:"src_property_id,omitempty"`
	InformationalText string      `json:"informationalText,omitempty" yaml:"informational_text,omitempty"`
	CreationTime      *TimeFilter `json:"creationTime,omitempty" yaml:"creation_time,omitempty"`
	HiddenEvents      bool        `json:"hiddenEvents,omitempty" yaml:"hidden_events,omitempty"`
	ID                string      `json:"id,omitempty" yaml:"id,omitempty"` // exact single-event match

	// Persistence metadata, no filtering effect.
	Name     string `json:"filterName,omitempty" yaml:"filter_name,omitempty"`
	FilterID int    `json:"filterId,omitempty" yaml:"filter_id,omitempty"`

	Empty bool `json:"empty" yaml:"empty"`
}

// IsEmpty reports whether no field has a filtering effect. HiddenEvents is
// applied by the server subscription, not here, so it does not count.
func (f *EventFilter) IsEmpty() bool {
	if f == nil {
		return true
	}
	return len(f.Categories) == 0 &&
		len(f.Disciplines) == 0 &&
		len(f.States) == 0 &&
		len(f.SrcStates) == 0 &&
		len(f.SrcSystems) == 0 &&
		len(f.SrcDesignations) == 0 &&
		f.SrcDescriptor == "" &&
		f.SrcAlias == "" &&
		f.SrcName == "" &&
		f.SrcPropertyID == "" &&
		f.InformationalText == "" &&
		(f.CreationTime == nil || f.CreationTime.Preset == TimeNone) &&
		f.ID == ""
}

// Normalize returns a copy with Empty recomputed and slices cloned.
func (f EventFilter) Normalize() EventFilter {
	f.Categories = slices.Clone(f.Categories)
	f.Disciplines = slices.Clone(f.Disciplines)
	f.States = slices.Clone(f.States)
	f.SrcStates = slices.Clone(f.SrcStates)
	f.SrcSystems = slices.Clone(f.SrcSystems)
	f.SrcDesignations = slices.Clone(f.SrcDesignations)
	if f.CreationTime != nil {
		ct := *f.CreationTime
		f.CreationTime = &ct
	}
	f.Empty = f.IsEmpty()
	return f
}

// Equal compares two filters on every field except the recomputed Empty flag.
func (f EventFilter) Equal(o EventFilter) bool {
	if !slices.Equal(f.Categories, o.Categories) ||
		!slices.Equal(f.Disciplines, o.Disciplines) ||
		!slices.Equal(f.States, o.States) ||
		!slices.Equal(f.SrcStates, o.SrcStates) ||
		!slices.Equal(f.SrcSystems, o.SrcSystems) ||
		!slices.Equal(f.SrcDesignations, o.SrcDesignations) {
		return false
	}
	if (f.CreationTime == nil) != (o.CreationTime == nil) {
		return false
	}
	if f.CreationTime != nil {
		a, b := f.CreationTime, o.CreationTime
		if a.Preset != b.Preset || !a.From.Equal(b.From) || !a.To.Equal(b.To) {
			return false
		}
	}
	return f.SrcDescriptor == o.SrcDescriptor &&
		f.SrcAlias == o.SrcAlias &&
		f.SrcName == o.SrcName &&
		f.SrcPropertyID == o.SrcPropertyID &&
		f.InformationalText == o.InformationalText &&
		f.HiddenEvents == o.HiddenEvents &&
		f.ID == o.ID &&
		f.Name == o.Name &&
		f.FilterID == o.FilterID
}

// Load reads a filter from a YAML or JSON file, choosing by extension.
func Load(path string) (EventFilter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EventFilter{}, errors.WrapIO("read", path, err)
	}
	var f EventFilter
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return EventFilter{}, errors.WrapParse("json", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return EventFilter{}, errors.WrapParse("yaml", path, err)
		}
	}
	return f.Normalize(), nil
}
