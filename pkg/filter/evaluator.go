package filter

import (
	"slices"
	"strings"
	"time"

	"github.com/agentstation/wsi/pkg/events"
)

// Result is the outcome of evaluating one event against one filter.
// Hidden is set by the state-prefix check, which hides an event from the
// view without rejecting it.
type Result struct {
	Match  bool
	Hidden bool
}

// Visible reports whether the event belongs in the filtered view.
func (r Result) Visible() bool {
	return r.Match && !r.Hidden
}

type verdict int

const (
	next verdict = iota
	accept
	reject
)

type evaluation struct {
	ev     *events.Event
	f      *EventFilter
	subID  int
	now    time.Time
	hidden bool
}

type check func(e *evaluation) verdict

// chain is evaluated in order; the first accept or reject wins.
var chain = []check{
	checkEmptyOrID,
	checkCategories,
	checkDisciplines,
	checkStates,
	checkSrcStates,
	checkSrcSystems,
	checkCreationTime,
	checkDesignations,
	checkDescriptor,
	checkAlias,
	checkName,
	checkPropertyID,
	checkInformationalText,
}

// Evaluator matches events against filters. It is stateless apart from
// its clock and safe for concurrent use.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator returns an evaluator using clock for relative time windows.
// A nil clock means time.Now.
func NewEvaluator(clock func() time.Time) *Evaluator {
	if clock == nil {
		clock = time.Now
	}
	return &Evaluator{now: clock}
}

// Evaluate runs the check chain. subID selects the designation semantics:
// the default subscription matches any configured designation against any
// of the event's designations, other subscriptions compare index by index.
func (v *Evaluator) Evaluate(ev *events.Event, f *EventFilter, subID int) Result {
	e := &evaluation{ev: ev, f: f, subID: subID, now: v.now()}
	for _, c := range chain {
		switch c(e) {
		case accept:
			return Result{Match: true, Hidden: e.hidden}
		case reject:
			return Result{Match: false, Hidden: e.hidden}
		}
	}
	return Result{Match: true, Hidden: e.hidden}
}

// Matches reports whether ev is visible under f.
func (v *Evaluator) Matches(ev *events.Event, f *EventFilter, subID int) bool {
	return v.Evaluate(ev, f, subID).Visible()
}

func checkEmptyOrID(e *evaluation) verdict {
	if e.f.IsEmpty() {
		return accept
	}
	if e.f.ID != "" {
		if e.ev.ID == e.f.ID {
			return accept
		}
		return reject
	}
	return next
}

func member[T comparable](list []T, v T) verdict {
	if len(list) == 0 || slices.Contains(list, v) {
		return next
	}
	return reject
}

func checkCategories(e *evaluation) verdict {
	return member(e.f.Categories, e.ev.CategoryID)
}

func checkDisciplines(e *evaluation) verdict {
	return member(e.f.Disciplines, e.ev.SrcDisciplineID)
}

// checkStates hides rather than rejects events whose state matches none
// of the configured prefixes.
func checkStates(e *evaluation) verdict {
	if len(e.f.States) == 0 {
		return next
	}
	if e.ev.StateID == events.StateUnknown {
		e.hidden = true
		return next
	}
	for _, prefix := range e.f.States {
		if strings.HasPrefix(e.ev.State, prefix) {
			return next
		}
	}
	e.hidden = true
	return next
}

func checkSrcStates(e *evaluation) verdict {
	if len(e.f.SrcStates) == 0 {
		return next
	}
	if e.ev.SrcStateID == events.SrcStateUnknown {
		return reject
	}
	return member(e.f.SrcStates, e.ev.SrcState)
}

func checkSrcSystems(e *evaluation) verdict {
	return member(e.f.SrcSystems, e.ev.SrcSystemID)
}

func checkCreationTime(e *evaluation) verdict {
	tf := e.f.CreationTime
	if tf == nil || tf.Preset == TimeNone {
		return next
	}
	t := e.ev.OriginalCreationTime
	if t.IsZero() {
		return reject
	}
	from, to := Window(tf, e.now)
	if (!from.IsZero() && t.Before(from)) || (!to.IsZero() && t.After(to)) {
		return reject
	}
	return next
}

// Window resolves a time filter to an inclusive [from, to] range relative
// to now. A zero bound is open.
func Window(tf *TimeFilter, now time.Time) (from, to time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch tf.Preset {
	case TimeLast15Min:
		return now.Add(-15 * time.Minute), time.Time{}
	case TimeLast30Min:
		return now.Add(-30 * time.Minute), time.Time{}
	case TimeLast60Min:
		return now.Add(-60 * time.Minute), time.Time{}
	case TimeLastNight:
		return midnight.AddDate(0, 0, -1).Add(18 * time.Hour), midnight.Add(6 * time.Hour)
	case TimeYesterday:
		return midnight.AddDate(0, 0, -1), midnight.Add(-time.Nanosecond)
	case TimeToday:
		return midnight, time.Time{}
	case TimeCustom:
		return tf.From, tf.To
	}
	return time.Time{}, time.Time{}
}

func checkDesignations(e *evaluation) verdict {
	patterns := e.f.SrcDesignations
	if len(patterns) == 0 {
		return next
	}
	list := e.ev.DesignationList
	if e.subID == 0 {
		for _, p := range patterns {
			for _, d := range list {
				if MatchDesignation(p, d.Designation) {
					return next
				}
			}
		}
		return reject
	}
	// Other subscriptions pair pattern i with the i-th designation view.
	for i, p := range patterns {
		if i < len(list) && MatchDesignation(p, list[i].Designation) {
			return next
		}
	}
	return reject
}

func checkDescriptor(e *evaluation) verdict {
	p := e.f.SrcDescriptor
	if p == "" {
		return next
	}
	locs, descs := e.ev.DescriptionLocationsList, e.ev.DescriptionList
	if len(locs) == 0 && len(descs) == 0 {
		return globVerdict(p, e.ev.SrcDescriptor)
	}
	for i := range max(len(locs), len(descs)) {
		if i < len(locs) && Glob(p, locs[i].Descriptor) {
			return next
		}
		if i < len(descs) && Glob(p, descs[i].Descriptor) {
			return next
		}
	}
	return reject
}

func checkAlias(e *evaluation) verdict {
	if e.f.SrcAlias == "" {
		return next
	}
	return globVerdict(e.f.SrcAlias, e.ev.SrcAlias)
}

func checkName(e *evaluation) verdict {
	p := e.f.SrcName
	if p == "" {
		return next
	}
	if len(e.ev.SourceDesignationList) == 0 {
		return globVerdict(p, e.ev.SrcName)
	}
	for _, d := range e.ev.SourceDesignationList {
		if Glob(p, d.Descriptor) {
			return next
		}
	}
	return reject
}

func checkPropertyID(e *evaluation) verdict {
	if e.f.SrcPropertyID == "" {
		return next
	}
	return globVerdict(e.f.SrcPropertyID, e.ev.SrcPropertyID)
}

func checkInformationalText(e *evaluation) verdict {
	if e.f.InformationalText == "" {
		return next
	}
	return globVerdict(e.f.InformationalText, e.ev.InformationalText)
}

func globVerdict(pattern, value string) verdict {
	if Glob(pattern, value) {
		return next
	}
	return reject
}
