package events

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/agentstation/wsi/pkg/constants"
)

// Grouping selects how GroupID is derived.
type Grouping int

const (
	// GroupBySource groups by property id root and category.
	GroupBySource Grouping = iota
	// GroupByEvent groups by server event id and source system.
	GroupByEvent
)

// ParseGrouping maps a configuration string to a Grouping.
func ParseGrouping(s string) Grouping {
	if strings.EqualFold(s, "event") {
		return GroupByEvent
	}
	return GroupBySource
}

// WebClientMarker is the token the server puts in InProcessBy for
// operators working through a web client.
const WebClientMarker = "[WebClient]"

// DisplayTimeFormat renders creation times with millisecond precision.
const DisplayTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Options tune the mapping of wire records.
type Options struct {
	Grouping      Grouping
	WebClientName string
}

var operatorPrefix = regexp.MustCompile(`^\d#`)

// FromRecord creates an Event for a first sighting of rec.
func FromRecord(rec *Record, category *Category, icon string, opts Options) *Event {
	ev := &Event{
		ID:       rec.ID,
		Category: category,
		Icon:     icon,
	}
	ev.OriginalCreationTime, ev.CreationTime = parseCreationTime(rec.CreationTime)
	apply(ev, rec, opts)
	return ev
}

// ApplyUpdate copies a later sighting of the same event onto ev. The id,
// category, icon and original creation time are kept.
func ApplyUpdate(ev *Event, rec *Record, opts Options) {
	apply(ev, rec, opts)
}

func apply(ev *Event, rec *Record, opts Options) {
	ev.EventID = rec.EventID
	ev.CategoryID = rec.CategoryID
	ev.CategoryDescriptor = rec.CategoryDescriptor
	ev.Cause = rec.Cause
	ev.Commands = rec.Commands

	ev.State = rec.State
	ev.StateID = ParseState(rec.State)
	ev.StatePriority = ev.StateID.Priority()
	ev.SrcState = rec.SrcState
	ev.SrcStateID = ParseSrcState(rec.SrcState)
	ev.SuggestedAction = rec.SuggestedAction
	ev.SuggestedActionID = ParseSuggestedAction(rec.SuggestedAction)

	ev.SrcDescriptor = rec.SrcDescriptor
	ev.SrcDesignation = Parent(rec.SrcDesignation)
	ev.SrcLocation = Parent(rec.SrcLocation)
	ev.SrcName = rec.SrcName
	ev.SrcSystemID = rec.SrcSystemID
	ev.SrcSystemName = rec.SrcSystemName
	if ev.SrcSystemName == "" {
		ev.SrcSystemName = SystemName(rec.SrcPropertyID)
	}
	ev.SrcDisciplineID = rec.SrcDisciplineID
	ev.SrcSubDisciplineID = rec.SrcSubDisciplineID
	ev.SrcAlias = rec.SrcAlias
	ev.SrcPropertyID = rec.SrcPropertyID

	ev.InProcessBy = DecodeInProcessBy(rec.InProcessBy, opts.WebClientName)
	ev.InformationalText = rec.InformationalText
	ev.MessageText = rec.MessageText

	ev.DesignationList = rec.DesignationList
	ev.DescriptionList = rec.DescriptionList
	ev.DescriptionLocationsList = rec.DescriptionLocationsList
	ev.SourceDesignationList = rec.SourceDesignationList

	ev.GroupID = GroupID(rec, opts.Grouping)
	ev.BelongsTo = BelongsTo(rec.SrcPropertyID)

	ev.AutomaticTreatment = rec.AutomaticTreatmentData
	ev.CustomData = rec.CustomData
}

func parseCreationTime(s string) (time.Time, string) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, s
	}
	return t, t.Format(DisplayTimeFormat)
}

// Parent strips the last dot-delimited segment of a designation or
// location. Values without a dot are returned unchanged.
func Parent(designation string) string {
	if i := strings.LastIndexByte(designation, '.'); i >= 0 {
		return designation[:i]
	}
	return designation
}

// BelongsTo strips the last two colon or dot delimited segments from a
// property id. Ids with fewer than two delimiters are returned unchanged.
func BelongsTo(propertyID string) string {
	s := propertyID
	for range 2 {
		i := strings.LastIndexAny(s, ":.")
		if i < 0 {
			return propertyID
		}
		s = s[:i]
	}
	return s
}

// SystemName returns the system prefix of a property id ("System1" for
// "System1:Device.Value"), or "" when the id carries no system.
func SystemName(propertyID string) string {
	if i := strings.IndexByte(propertyID, ':'); i > 0 {
		return propertyID[:i]
	}
	return ""
}

// GroupID derives the grouping key of a record.
func GroupID(rec *Record, mode Grouping) string {
	if mode == GroupByEvent {
		return fmt.Sprintf("%d_%d", rec.EventID, rec.SrcSystemID)
	}
	root := rec.SrcPropertyID
	if i := strings.IndexByte(root, '.'); i >= 0 {
		root = root[:i]
	}
	return fmt.Sprintf("%s_%d", root, rec.CategoryID)
}

// DecodeInProcessBy splits the backslash-delimited operator list, strips
// "<digit>#" prefixes and replaces the web client marker with webClientName.
func DecodeInProcessBy(raw, webClientName string) []string {
	if raw == "" {
		return nil
	}
	if webClientName == "" {
		webClientName = constants.DefaultWebClientName
	}
	parts := strings.Split(raw, `\`)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if operatorPrefix.MatchString(p) {
			p = p[2:]
			p = strings.ReplaceAll(p, WebClientMarker, webClientName)
		}
		out = append(out, p)
	}
	return out
}
