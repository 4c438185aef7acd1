package events

import "encoding/json"

// Record is the wire shape of one event as pushed by the WSI server.
// Enumerated fields arrive as free text and are resolved by the mapper.
type Record struct {
	ID                       string              `json:"Id"`
	EventID                  int64               `json:"EventId"`
	CategoryID               int                 `json:"CategoryId"`
	CategoryDescriptor       string              `json:"CategoryDescriptor"`
	Cause                    string              `json:"Cause"`
	Commands                 []Command           `json:"Commands,omitempty"`
	CreationTime             string              `json:"CreationTime"` // RFC 3339, server clock
	State                    string              `json:"State"`
	SrcState                 string              `json:"SrcState"`
	SuggestedAction          string              `json:"SuggestedAction"`
	SrcDescriptor            string              `json:"SrcDescriptor"`
	SrcDesignation           string              `json:"SrcDesignation"`
	SrcLocation              string              `json:"SrcLocation"`
	SrcName                  string              `json:"SrcName"`
	SrcSystemID              int                 `json:"SrcSystemId"`
	SrcSystemName            string              `json:"SrcSystemName,omitempty"`
	SrcDisciplineID          int                 `json:"SrcDisciplineId"`
	SrcSubDisciplineID       int                 `json:"SrcSubDisciplineId"`
	SrcAlias                 string              `json:"SrcAlias"`
	SrcPropertyID            string              `json:"SrcPropertyId"`
	InProcessBy              string              `json:"InProcessBy"` // backslash-delimited operator list
	InformationalText        string              `json:"InformationalText"`
	MessageText              []string            `json:"MessageText,omitempty"`
	DesignationList          []Designation       `json:"DesignationList,omitempty"`
	DescriptionList          []Designation       `json:"DescriptionList,omitempty"`
	DescriptionLocationsList []Designation       `json:"DescriptionLocationsList,omitempty"`
	SourceDesignationList    []Designation       `json:"SourceDesignationList,omitempty"`
	AutomaticTreatmentData   *AutomaticTreatment `json:"AutomaticTreatmentData,omitempty"`
	CustomData               json.RawMessage     `json:"CustomData,omitempty"`
}

// Designation is one view-specific naming of an event source.
type Designation struct {
	ViewID      int    `json:"ViewId" yaml:"view_id"`
	Descriptor  string `json:"Descriptor" yaml:"descriptor"`
	Designation string `json:"Designation" yaml:"designation"`
}

// Command is an operator command the server allows on an event.
type Command struct {
	ID            string `json:"Id" yaml:"id"`
	Configuration int    `json:"Configuration,omitempty" yaml:"configuration,omitempty"`
}

// AutomaticTreatment describes the treatment the UI should open without
// operator interaction when the event arrives.
type AutomaticTreatment struct {
	TreatmentType      string            `json:"TreatmentType" yaml:"treatment_type"`
	ValidationRequired bool              `json:"ValidationRequired,omitempty" yaml:"validation_required,omitempty"`
	Parameters         map[string]string `json:"Parameters,omitempty" yaml:"parameters,omitempty"`
}

// DecodeRecords parses a JSON array of wire records.
func DecodeRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
