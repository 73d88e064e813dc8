package authority

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a resolved entity.
type Kind string

const (
	KindUnknown      Kind = ""
	KindOrganization Kind = "organization"
	KindProject      Kind = "project"
)

// ParseKind maps a configuration or CLI value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "organization", "org":
		return KindOrganization, nil
	case "project", "proj":
		return KindProject, nil
	case "":
		return KindUnknown, nil
	}
	return KindUnknown, fmt.Errorf("unknown entity kind %q", s)
}

// Entity is the fixed enrichment template for one organization or project.
// Every optional attribute is nil when the authority has no value for it.
type Entity struct {
	Kind      Kind
	Name      string
	URI       *string
	Label     *string
	Country   *string
	Website   *string
	StartDate *string
	EndDate   *string
	Funder    *string
	Founder   *string // organizations only
}

// Matched reports whether the entity was linked to an authority record.
func (e *Entity) Matched() bool {
	return e.URI != nil
}

// Attr is a single non-null attribute of an entity, keyed by graph predicate.
type Attr struct {
	Predicate string
	Value     string
}

// NamePredicate is the predicate carrying the entity name for its kind.
func (e *Entity) NamePredicate() string {
	if e.Kind == KindProject {
		return "has_id_project"
	}
	return "has_name_organization"
}

// Attrs lists the entity's attributes in template order, skipping nulls.
// The name is always present.
func (e *Entity) Attrs() []Attr {
	attrs := []Attr{{Predicate: e.NamePredicate(), Value: e.Name}}
	add := func(pred string, v *string) {
		if v != nil {
			attrs = append(attrs, Attr{Predicate: pred, Value: *v})
		}
	}
	add("has_wikidata_uri", e.URI)
	add("has_wikidata_label", e.Label)
	add("has_located_country", e.Country)
	add("has_website", e.Website)
	add("has_start_date", e.StartDate)
	add("has_end_date", e.EndDate)
	add("has_funder", e.Funder)
	if e.Kind != KindProject {
		add("has_founder", e.Founder)
	}
	return attrs
}

type organizationJSON struct {
	Name      string  `json:"has_name_organization"`
	URI       *string `json:"has_wikidata_uri"`
	Label     *string `json:"has_wikidata_label"`
	Country   *string `json:"has_located_country"`
	Website   *string `json:"has_website"`
	StartDate *string `json:"has_start_date"`
	EndDate   *string `json:"has_end_date"`
	Funder    *string `json:"has_funder"`
	Founder   *string `json:"has_founder"`
}

type projectJSON struct {
	ID        string  `json:"has_id_project"`
	URI       *string `json:"has_wikidata_uri"`
	Label     *string `json:"has_wikidata_label"`
	Country   *string `json:"has_located_country"`
	Website   *string `json:"has_website"`
	StartDate *string `json:"has_start_date"`
	EndDate   *string `json:"has_end_date"`
	Funder    *string `json:"has_funder"`
}

// MarshalJSON writes the full key set for the entity's kind, nulls included.
func (e Entity) MarshalJSON() ([]byte, error) {
	if e.Kind == KindProject {
		return json.Marshal(projectJSON{
			ID: e.Name, URI: e.URI, Label: e.Label, Country: e.Country, Website: e.Website,
			StartDate: e.StartDate, EndDate: e.EndDate, Funder: e.Funder,
		})
	}
	return json.Marshal(organizationJSON{
		Name: e.Name, URI: e.URI, Label: e.Label, Country: e.Country, Website: e.Website,
		StartDate: e.StartDate, EndDate: e.EndDate, Funder: e.Funder, Founder: e.Founder,
	})
}

// UnmarshalJSON infers the kind from the name key present.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw struct {
		organizationJSON
		ID *string `json:"has_id_project"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o := raw.organizationJSON
	*e = Entity{
		Kind: KindOrganization, Name: o.Name, URI: o.URI, Label: o.Label, Country: o.Country,
		Website: o.Website, StartDate: o.StartDate, EndDate: o.EndDate, Funder: o.Funder,
		Founder: o.Founder,
	}
	if raw.ID != nil {
		e.Kind = KindProject
		e.Name = *raw.ID
		e.Founder = nil
	}
	return nil
}
