package wikidata

import "encoding/json"

// SearchHit is one result of wbsearchentities.
type SearchHit struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type searchResponse struct {
	Search []SearchHit `json:"search"`
}

// Entity is the subset of an item record the resolver consumes.
type Entity struct {
	ID     string                      `json:"id"`
	Labels map[string]LanguageValue    `json:"labels"`
	Claims map[string][]ClaimStatement `json:"claims"`
}

// LanguageValue is a label in one language.
type LanguageValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// ClaimStatement is one statement for a property.
type ClaimStatement struct {
	MainSnak Snak `json:"mainsnak"`
}

// Snak carries the typed value of a statement. DataValue is nil for
// "no value" and "unknown value" snaks.
type Snak struct {
	SnakType  string     `json:"snaktype"`
	Property  string     `json:"property"`
	DataType  string     `json:"datatype"`
	DataValue *DataValue `json:"datavalue"`
}

// DataValue holds the raw value; its shape depends on the snak datatype.
type DataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type entityResponse struct {
	Entities map[string]Entity `json:"entities"`
}

// Label returns the label in lang, or nil.
func (e *Entity) Label(lang string) *string {
	if l, ok := e.Labels[lang]; ok && l.Value != "" {
		v := l.Value
		return &v
	}
	return nil
}

// InstanceOf returns the item ids of the entity's P31 statements.
func (e *Entity) InstanceOf() []string {
	var ids []string
	for _, c := range e.Claims["P31"] {
		if id := c.MainSnak.value(); id != nil && c.MainSnak.DataType == "wikibase-item" {
			ids = append(ids, *id)
		}
	}
	return ids
}

// FirstValue returns the first statement value of property pid as a
// string: the literal for string/url/external-id, the item id for
// wikibase-item and the timestamp for time. Other datatypes yield nil.
func (e *Entity) FirstValue(pid string) *string {
	claims := e.Claims[pid]
	if len(claims) == 0 {
		return nil
	}
	return claims[0].MainSnak.value()
}

func (s *Snak) value() *string {
	if s.DataValue == nil || len(s.DataValue.Value) == 0 {
		return nil
	}
	switch s.DataType {
	case "string", "url", "external-id":
		var v string
		if json.Unmarshal(s.DataValue.Value, &v) != nil {
			return nil
		}
		return &v
	case "wikibase-item":
		var v struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(s.DataValue.Value, &v) != nil || v.ID == "" {
			return nil
		}
		return &v.ID
	case "time":
		var v struct {
			Time string `json:"time"`
		}
		if json.Unmarshal(s.DataValue.Value, &v) != nil || v.Time == "" {
			return nil
		}
		return &v.Time
	}
	return nil
}

// Binding is one SPARQL result row; each variable maps to its value.
type Binding map[string]string

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}
