// Package paper defines the per-paper record shared by every pipeline stage.
package paper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matsen/paperkg/internal/authority"
)

// Paper is one source document plus whatever the stages so far have added.
type Paper struct {
	// Metadata from the document-processing service.
	Filename         string      `json:"filename"`
	Title            string      `json:"title"`
	Authors          []Author    `json:"authors"`
	Abstract         string      `json:"abstract"`
	PublicationDate  string      `json:"publication_date"`
	Acknowledgements string      `json:"acknowledgements"`
	References       []Reference `json:"references"`

	// Candidate extraction.
	Organizations []string `json:"organizations,omitempty"`
	Projects      []string `json:"projects,omitempty"`

	// Authority enrichment.
	EnrichedOrganizations []authority.Entity `json:"enriched_organizations,omitempty"`
	EnrichedProjects      []authority.Entity `json:"enriched_projects,omitempty"`

	// Topic model output.
	MainTopic  *int     `json:"main_topic,omitempty"`
	TopicScore *float64 `json:"topic_score,omitempty"`
}

// Key is the stable join key: the filename, or the title when the
// filename is missing.
func (p *Paper) Key() string {
	if p.Filename != "" {
		return p.Filename
	}
	return p.Title
}

// AuthorNames returns the author names in source order.
func (p *Paper) AuthorNames() []string {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// Author is a paper author. On the wire it is either a bare name string or
// an object with a name and an affiliation.
type Author struct {
	Name        string
	Affiliation string
}

type authorObject struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// MarshalJSON writes a bare string unless an affiliation is known.
func (a Author) MarshalJSON() ([]byte, error) {
	if a.Affiliation == "" {
		return json.Marshal(a.Name)
	}
	return json.Marshal(authorObject{Name: a.Name, Affiliation: a.Affiliation})
}

// UnmarshalJSON accepts either wire form; null decodes to an empty author.
func (a *Author) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = Author{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*a = Author{Name: name}
		return nil
	case len(data) > 0 && data[0] == '{':
		var obj authorObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*a = Author{Name: obj.Name, Affiliation: obj.Affiliation}
		return nil
	}
	return fmt.Errorf("author: unsupported JSON value %s", data)
}

// Reference is one cited work as reported by the extraction service.
type Reference struct {
	Authors    []string `json:"authors"`
	Title      string   `json:"title"`
	Identifier *string  `json:"identifier"`
}

// ErrNoTopic is returned when a paper lacks topic model output.
var ErrNoTopic = errors.New("paper has no main_topic")

// Topic returns the paper's main topic id.
func (p *Paper) Topic() (int, error) {
	if p.MainTopic == nil {
		return 0, ErrNoTopic
	}
	return *p.MainTopic, nil
}
