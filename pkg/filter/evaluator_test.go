package filter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/wsi/pkg/events"
	"github.com/agentstation/wsi/pkg/filter"
)

var fixedNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func newEvaluator() *filter.Evaluator {
	return filter.NewEvaluator(func() time.Time { return fixedNow })
}

func baseEvent() *events.Event {
	return &events.Event{
		ID:                   "e1",
		CategoryID:           1,
		State:                "Unprocessed",
		StateID:              events.StateUnprocessed,
		SrcState:             "Active",
		SrcStateID:           events.SrcStateActive,
		SrcSystemID:          3,
		SrcDisciplineID:      50,
		SrcAlias:             "AHU-01",
		SrcPropertyID:        "System1:Ahu01.Present_Value",
		InformationalText:    "Filter clogged",
		OriginalCreationTime: fixedNow.Add(-10 * time.Minute),
		DesignationList: []events.Designation{
			{ViewID: 1, Designation: "Site.B1.F2.Ahu01"},
			{ViewID: 2, Designation: "Mgmt.Net1.Dev7"},
		},
		DescriptionList:          []events.Designation{{Descriptor: "Air Handler 01"}},
		DescriptionLocationsList: []events.Designation{{Descriptor: "Floor 2 Plant Room"}},
		SourceDesignationList:    []events.Designation{{Descriptor: "Supply Fan"}},
	}
}

func TestEvaluateChain(t *testing.T) {
	tests := []struct {
		name   string
		filter filter.EventFilter
		subID  int
		want   filter.Result
	}{
		{"empty matches", filter.EventFilter{}, 0, filter.Result{Match: true}},
		{"stale empty flag ignored", filter.EventFilter{Empty: true, Categories: []int{9}}, 0, filter.Result{}},
		{"id match short-circuits", filter.EventFilter{ID: "e1", Categories: []int{9}}, 0, filter.Result{Match: true}},
		{"id mismatch", filter.EventFilter{ID: "e2"}, 0, filter.Result{}},
		{"category in", filter.EventFilter{Categories: []int{1, 2}}, 0, filter.Result{Match: true}},
		{"category out", filter.EventFilter{Categories: []int{3}}, 0, filter.Result{}},
		{"discipline out", filter.EventFilter{Disciplines: []int{10}}, 0, filter.Result{}},
		{"src state in", filter.EventFilter{SrcStates: []string{"Active"}}, 0, filter.Result{Match: true}},
		{"src state out", filter.EventFilter{SrcStates: []string{"Quiet"}}, 0, filter.Result{}},
		{"src system out", filter.EventFilter{SrcSystems: []int{4}}, 0, filter.Result{}},
		{"state prefix in", filter.EventFilter{States: []string{"Unproc"}}, 0, filter.Result{Match: true}},
		{"state prefix out hides", filter.EventFilter{States: []string{"Ready"}}, 0, filter.Result{Match: true, Hidden: true}},
		{"hidden survives later reject", filter.EventFilter{States: []string{"Ready"}, SrcAlias: "zzz"}, 0, filter.Result{Hidden: true}},
		{"last 15 minutes", filter.EventFilter{CreationTime: &filter.TimeFilter{Preset: filter.TimeLast15Min}}, 0, filter.Result{Match: true}},
		{"yesterday rejects today", filter.EventFilter{CreationTime: &filter.TimeFilter{Preset: filter.TimeYesterday}}, 0, filter.Result{}},
		{"descriptor on description list", filter.EventFilter{SrcDescriptor: "air*01"}, 0, filter.Result{Match: true}},
		{"descriptor on locations list", filter.EventFilter{SrcDescriptor: "*plant"}, 0, filter.Result{Match: true}},
		{"descriptor out", filter.EventFilter{SrcDescriptor: "boiler"}, 0, filter.Result{}},
		{"alias", filter.EventFilter{SrcAlias: "ahu"}, 0, filter.Result{Match: true}},
		{"alias out", filter.EventFilter{SrcAlias: "chiller"}, 0, filter.Result{}},
		{"name", filter.EventFilter{SrcName: "supply*"}, 0, filter.Result{Match: true}},
		{"name out", filter.EventFilter{SrcName: "return"}, 0, filter.Result{}},
		{"property id", filter.EventFilter{SrcPropertyID: "system1:ahu*"}, 0, filter.Result{Match: true}},
		{"property id out", filter.EventFilter{SrcPropertyID: "System2"}, 0, filter.Result{}},
		{"informational text", filter.EventFilter{InformationalText: "*clog"}, 0, filter.Result{Match: true}},
		{"informational text out", filter.EventFilter{InformationalText: "leak"}, 0, filter.Result{}},
	}
	ev := newEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.filter
			assert.Equal(t, tt.want, ev.Evaluate(baseEvent(), &f, tt.subID))
		})
	}
}

func TestUnknownStateNeverSatisfiesStateFilters(t *testing.T) {
	e := baseEvent()
	e.State = "Mystery"
	e.StateID = events.StateUnknown
	e.SrcState = "Weird"
	e.SrcStateID = events.SrcStateUnknown

	ev := newEvaluator()
	assert.True(t, ev.Evaluate(e, &filter.EventFilter{States: []string{"M"}}, 0).Hidden)
	assert.False(t, ev.Matches(e, &filter.EventFilter{SrcStates: []string{"Weird"}}, 0))
	assert.True(t, ev.Matches(e, &filter.EventFilter{Categories: []int{1}}, 0))
}

func TestDesignationSemanticsBySubscription(t *testing.T) {
	ev := newEvaluator()

	// The second configured designation matches the event's second entry.
	f := filter.EventFilter{SrcDesignations: []string{"Other.**", "Mgmt.Net1.**"}}
	assert.True(t, ev.Matches(baseEvent(), &f, 0))
	assert.True(t, ev.Matches(baseEvent(), &f, 5))

	// Cross-index matches only count for the default subscription.
	f = filter.EventFilter{SrcDesignations: []string{"Mgmt.**"}}
	assert.True(t, ev.Matches(baseEvent(), &f, 0))
	assert.False(t, ev.Matches(baseEvent(), &f, 5))

	f = filter.EventFilter{SrcDesignations: []string{"Site.B1.**"}}
	assert.True(t, ev.Matches(baseEvent(), &f, 5))

	f = filter.EventFilter{SrcDesignations: []string{"Site.B1"}}
	assert.False(t, ev.Matches(baseEvent(), &f, 0))
}

func TestDesignationIndexAlignment(t *testing.T) {
	ev := newEvaluator()

	// Pattern 0 belongs to the first view, pattern 1 to the second.
	f := filter.EventFilter{SrcDesignations: []string{"Mgmt.**", "Site.**"}}
	assert.True(t, ev.Matches(baseEvent(), &f, 0))
	assert.False(t, ev.Matches(baseEvent(), &f, 3))

	f = filter.EventFilter{SrcDesignations: []string{"Site.**", "Mgmt.**"}}
	assert.True(t, ev.Matches(baseEvent(), &f, 3))

	// Patterns past the end of the designation list never match.
	f = filter.EventFilter{SrcDesignations: []string{"Other.**", "Other.**", "Site.**"}}
	assert.False(t, ev.Matches(baseEvent(), &f, 3))
	assert.True(t, ev.Matches(baseEvent(), &f, 0))
}

func TestTimeWindows(t *testing.T) {
	at := func(d time.Duration) *events.Event {
		e := baseEvent()
		e.OriginalCreationTime = fixedNow.Add(d)
		return e
	}
	preset := func(p filter.TimePreset) *filter.EventFilter {
		return &filter.EventFilter{CreationTime: &filter.TimeFilter{Preset: p}}
	}
	ev := newEvaluator()

	assert.False(t, ev.Matches(at(-20*time.Minute), preset(filter.TimeLast15Min), 0))
	assert.True(t, ev.Matches(at(-20*time.Minute), preset(filter.TimeLast30Min), 0))
	assert.False(t, ev.Matches(at(-61*time.Minute), preset(filter.TimeLast60Min), 0))

	// 2026-05-09 22:00 falls in last night, 2026-05-10 07:00 does not.
	assert.True(t, ev.Matches(at(-14*time.Hour), preset(filter.TimeLastNight), 0))
	assert.False(t, ev.Matches(at(-5*time.Hour), preset(filter.TimeLastNight), 0))

	assert.True(t, ev.Matches(at(-14*time.Hour), preset(filter.TimeYesterday), 0))
	assert.False(t, ev.Matches(at(-14*time.Hour), preset(filter.TimeToday), 0))
	assert.True(t, ev.Matches(at(-11*time.Hour), preset(filter.TimeToday), 0))

	custom := &filter.EventFilter{CreationTime: &filter.TimeFilter{
		Preset: filter.TimeCustom,
		From:   fixedNow.Add(-2 * time.Hour),
		To:     fixedNow.Add(-1 * time.Hour),
	}}
	assert.True(t, ev.Matches(at(-90*time.Minute), custom, 0))
	assert.False(t, ev.Matches(at(-30*time.Minute), custom, 0))

	noTime := baseEvent()
	noTime.OriginalCreationTime = time.Time{}
	assert.False(t, ev.Matches(noTime, preset(filter.TimeToday), 0))
}

func TestEvaluateDeterministic(t *testing.T) {
	ev := newEvaluator()
	f := filter.EventFilter{Categories: []int{1}, States: []string{"Ready"}, SrcAlias: "AHU"}
	first := ev.Evaluate(baseEvent(), &f, 2)
	for range 5 {
		assert.Equal(t, first, ev.Evaluate(baseEvent(), &f, 2))
	}
}
