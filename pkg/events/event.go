// Package events defines the WSI event entity, its wire record and the
// mapping between the two.
package events

import (
	"encoding/json"
	"time"
)

// Event is the internal, mutable form of one WSI event. The store holds a
// single *Event per ID and updates it in place; consumers receive value
// snapshots.
type Event struct {
	// Identity
	ID      string `json:"id" yaml:"id"`
	EventID int64  `json:"eventId" yaml:"event_id"`

	// Category
	CategoryID         int       `json:"categoryId" yaml:"category_id"`
	CategoryDescriptor string    `json:"categoryDescriptor" yaml:"category_descriptor"`
	Category           *Category `json:"category,omitempty" yaml:"category,omitempty"`

	Cause    string    `json:"cause" yaml:"cause"`
	Commands []Command `json:"commands,omitempty" yaml:"commands,omitempty"`

	// Creation time: display string with millisecond precision plus the
	// parsed original, which never changes after the first sighting.
	CreationTime         string    `json:"creationTime" yaml:"creation_time"`
	OriginalCreationTime time.Time `json:"originalCreationTime" yaml:"original_creation_time"`

	// State
	State             string          `json:"state" yaml:"state"`
	StateID           State           `json:"stateId" yaml:"state_id"`
	StatePriority     int             `json:"statePriority" yaml:"state_priority"`
	SrcState          string          `json:"srcState" yaml:"src_state"`
	SrcStateID        SrcState        `json:"srcStateId" yaml:"src_state_id"`
	SuggestedAction   string          `json:"suggestedAction" yaml:"suggested_action"`
	SuggestedActionID SuggestedAction `json:"suggestedActionId" yaml:"suggested_action_id"`

	// Source
	SrcDescriptor      string `json:"srcDescriptor" yaml:"src_descriptor"`
	SrcDesignation     string `json:"srcDesignation" yaml:"src_designation"` // parent node of the raw designation
	SrcLocation        string `json:"srcLocation" yaml:"src_location"`       // parent node of the raw location
	SrcName            string `json:"srcName" yaml:"src_name"`
	SrcSystemID        int    `json:"srcSystemId" yaml:"src_system_id"`
	SrcSystemName      string `json:"srcSystemName" yaml:"src_system_name"`
	SrcDisciplineID    int    `json:"srcDisciplineId" yaml:"src_discipline_id"`
	SrcSubDisciplineID int    `json:"srcSubDisciplineId" yaml:"src_sub_discipline_id"`
	SrcAlias           string `json:"srcAlias" yaml:"src_alias"`
	SrcPropertyID      string `json:"srcPropertyId" yaml:"src_property_id"`

	InProcessBy       []string `json:"inProcessBy,omitempty" yaml:"in_process_by,omitempty"`
	InformationalText string   `json:"informationalText" yaml:"informational_text"`
	MessageText       []string `json:"messageText,omitempty" yaml:"message_text,omitempty"`

	DesignationList          []Designation `json:"designationList,omitempty" yaml:"designation_list,omitempty"`
	DescriptionList          []Designation `json:"descriptionList,omitempty" yaml:"description_list,omitempty"`
	DescriptionLocationsList []Designation `json:"descriptionLocationsList,omitempty" yaml:"description_locations_list,omitempty"`
	SourceDesignationList    []Designation `json:"sourceDesignationList,omitempty" yaml:"source_designation_list,omitempty"`

	// Derived keys
	GroupID   string `json:"groupId" yaml:"group_id"`
	BelongsTo string `json:"belongsTo" yaml:"belongs_to"`
	Icon      string `json:"icon,omitempty" yaml:"icon,omitempty"`

	AutomaticTreatment *AutomaticTreatment `json:"automaticTreatment,omitempty" yaml:"automatic_treatment,omitempty"`
	CustomData         json.RawMessage     `json:"customData,omitempty" yaml:"custom_data,omitempty"`

	// ClosedForFilter marks an active event that the owning view filters out.
	ClosedForFilter bool `json:"closedForFilter" yaml:"closed_for_filter"`

	// Display-time grouping by GroupID. These are id references, not ownership.
	GroupedEvents []string `json:"groupedEvents,omitempty" yaml:"grouped_events,omitempty"`
	Container     string   `json:"container,omitempty" yaml:"container,omitempty"`
}

// Snapshot returns a value copy of the event. Slices are shared; the mapper
// replaces them on update rather than mutating them.
func (e *Event) Snapshot() Event {
	return *e
}

// IsClosed reports whether the event's state resolved to Closed.
func (e *Event) IsClosed() bool {
	return e.StateID == StateClosed
}

// HigherPriorityThan reports whether e is strictly more urgent than o:
// a lower category id wins, then a lower state priority.
func (e *Event) HigherPriorityThan(o *Event) bool {
	if e.CategoryID != o.CategoryID {
		return e.CategoryID < o.CategoryID
	}
	return e.StatePriority < o.StatePriority
}

// Less orders events for full views: priority first, newest first within
// equal priority, then by id.
func Less(a, b *Event) bool {
	if a.HigherPriorityThan(b) {
		return true
	}
	if b.HigherPriorityThan(a) {
		return false
	}
	if !a.OriginalCreationTime.Equal(b.OriginalCreationTime) {
		return a.OriginalCreationTime.After(b.OriginalCreationTime)
	}
	return a.ID < b.ID
}
