package transport

import (
	"context"
	"net/http"

	"github.com/agentstation/wsi/pkg/events"
)

// Discipline is a WSI discipline with its sub-disciplines and icons.
type Discipline struct {
	ID             int             `json:"Id" yaml:"id"`
	Descriptor     string          `json:"Descriptor" yaml:"descriptor"`
	Icon           string          `json:"Icon,omitempty" yaml:"icon,omitempty"`
	SubDisciplines []SubDiscipline `json:"SubDisciplines,omitempty" yaml:"sub_disciplines,omitempty"`
}

// SubDiscipline is one sub-discipline of a Discipline.
type SubDiscipline struct {
	ID         int    `json:"Id" yaml:"id"`
	Descriptor string `json:"Descriptor" yaml:"descriptor"`
	Icon       string `json:"Icon,omitempty" yaml:"icon,omitempty"`
}

// GetCategories fetches the event categories.
func (c *Client) GetCategories(ctx context.Context) ([]events.Category, error) {
	var out []events.Category
	if err := c.do(ctx, http.MethodGet, pathCategories, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDisciplines fetches disciplines and sub-disciplines.
func (c *Client) GetDisciplines(ctx context.Context) ([]Discipline, error) {
	var out []Discipline
	if err := c.do(ctx, http.MethodGet, pathDisciplines, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
