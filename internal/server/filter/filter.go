// Package filter parses event filters from HTTP query parameters.
package filter

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/filter"
)

// Query parameter names.
const (
	ParamCategory    = "category"
	ParamDiscipline  = "discipline"
	ParamState       = "state"
	ParamSrcState    = "src_state"
	ParamSrcSystem   = "src_system"
	ParamDesignation = "designation"
	ParamDescriptor  = "descriptor"
	ParamAlias       = "alias"
	ParamName        = "name"
	ParamPropertyID  = "property_id"
	ParamText        = "text"
	ParamTime        = "time"
	ParamFrom        = "from"
	ParamTo          = "to"
	ParamHidden      = "hidden"
	ParamID          = "id"
)

var params = []string{
	ParamCategory, ParamDiscipline, ParamState, ParamSrcState, ParamSrcSystem,
	ParamDesignation, ParamDescriptor, ParamAlias, ParamName, ParamPropertyID,
	ParamText, ParamTime, ParamFrom, ParamTo, ParamHidden, ParamID,
}

// HasFilter reports whether q carries any filter parameter.
func HasFilter(q url.Values) bool {
	for _, p := range params {
		if q.Has(p) {
			return true
		}
	}
	return false
}

// Parse builds an event filter from q. List parameters are comma
// separated and may repeat. Malformed numbers, times and booleans are
// validation errors.
func Parse(q url.Values) (filter.EventFilter, error) {
	f := filter.EventFilter{
		States:            list(q, ParamState),
		SrcStates:         list(q, ParamSrcState),
		SrcDesignations:   list(q, ParamDesignation),
		SrcDescriptor:     q.Get(ParamDescriptor),
		SrcAlias:          q.Get(ParamAlias),
		SrcName:           q.Get(ParamName),
		SrcPropertyID:     q.Get(ParamPropertyID),
		InformationalText: q.Get(ParamText),
		ID:                q.Get(ParamID),
	}

	var err error
	if f.Categories, err = ints(q, ParamCategory); err != nil {
		return f, err
	}
	if f.Disciplines, err = ints(q, ParamDiscipline); err != nil {
		return f, err
	}
	if f.SrcSystems, err = ints(q, ParamSrcSystem); err != nil {
		return f, err
	}

	if hidden := q.Get(ParamHidden); hidden != "" {
		if f.HiddenEvents, err = strconv.ParseBool(hidden); err != nil {
			return f, errors.WrapValidation(ParamHidden, err)
		}
	}

	if ct, err := creationTime(q); err != nil {
		return f, err
	} else if ct != nil {
		f.CreationTime = ct
	}

	return f.Normalize(), nil
}

func creationTime(q url.Values) (*filter.TimeFilter, error) {
	preset := filter.TimePreset(q.Get(ParamTime))
	from, to := q.Get(ParamFrom), q.Get(ParamTo)
	if preset == filter.TimeNone && (from != "" || to != "") {
		preset = filter.TimeCustom
	}
	switch preset {
	case filter.TimeNone:
		return nil, nil
	case filter.TimeLast15Min, filter.TimeLast30Min, filter.TimeLast60Min,
		filter.TimeLastNight, filter.TimeYesterday, filter.TimeToday, filter.TimeCustom:
	default:
		return nil, errors.NewValidationError(ParamTime, string(preset), "unknown time preset")
	}

	ct := &filter.TimeFilter{Preset: preset}
	if preset != filter.TimeCustom {
		return ct, nil
	}
	var err error
	if from != "" {
		if ct.From, err = time.Parse(time.RFC3339, from); err != nil {
			return nil, errors.WrapValidation(ParamFrom, err)
		}
	}
	if to != "" {
		if ct.To, err = time.Parse(time.RFC3339, to); err != nil {
			return nil, errors.WrapValidation(ParamTo, err)
		}
	}
	return ct, nil
}

// list splits every value of key on commas and drops blanks.
func list(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func ints(q url.Values, key string) ([]int, error) {
	parts := list(q, key)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.NewValidationError(key, p, "not an integer")
		}
		out = append(out, n)
	}
	return out, nil
}
