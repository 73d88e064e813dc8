package orcid

// Affiliation is one education or employment entry, simplified.
type Affiliation struct {
	Institution *string `json:"institution"`
	City        *string `json:"city"`
	Country     *string `json:"country"`
	Role        *string `json:"role"`
	StartYear   *string `json:"start_year"`
	EndYear     *string `json:"end_year"`
	Identifier  *string `json:"identifier"`
}

// ExternalID is a typed persistent identifier such as a Scopus author id.
type ExternalID struct {
	Type  *string `json:"type"`
	Value *string `json:"value"`
	URL   *string `json:"url"`
}

// ResearcherURL is a labelled link from the researcher's profile.
type ResearcherURL struct {
	Label *string `json:"label"`
	URL   *string `json:"url"`
}

// PersonInfo is the biography section of a record.
type PersonInfo struct {
	ExternalIDs    []ExternalID
	ResearcherURLs []ResearcherURL
	OtherNames     []string
}

// Works summarizes a record's publication list.
type Works struct {
	Titles []string
	// Count is the number of work groups, matching the profile's work count.
	Count int
}

// Wire shapes of the v3.0 API. Every nested object is optional.

type valueField struct {
	Value *string `json:"value"`
}

type searchResponse struct {
	NumFound int `json:"num-found"`
	Result   []struct {
		Identifier *struct {
			Path string `json:"path"`
		} `json:"orcid-identifier"`
	} `json:"result"`
}

type worksResponse struct {
	Group []struct {
		WorkSummary []struct {
			Title *struct {
				Title *valueField `json:"title"`
			} `json:"title"`
		} `json:"work-summary"`
	} `json:"group"`
}

type affiliationSummary struct {
	Organization *struct {
		Name    *string `json:"name"`
		Address *struct {
			City    *string `json:"city"`
			Country *string `json:"country"`
		} `json:"address"`
		Disambiguated *struct {
			Identifier *string `json:"disambiguated-organization-identifier"`
		} `json:"disambiguated-organization"`
	} `json:"organization"`
	RoleTitle *string    `json:"role-title"`
	StartDate *fuzzyDate `json:"start-date"`
	EndDate   *fuzzyDate `json:"end-date"`
}

type fuzzyDate struct {
	Year *valueField `json:"year"`
}

func (d *fuzzyDate) year() *string {
	if d == nil || d.Year == nil {
		return nil
	}
	return d.Year.Value
}

// affiliationsResponse covers both the grouped v3.0 layout and the flat
// legacy list keyed by "<section>-summary".
type affiliationsResponse struct {
	Groups []struct {
		Summaries []map[string]affiliationSummary `json:"summaries"`
	} `json:"affiliation-group"`
	EducationSummary  []affiliationSummary `json:"education-summary"`
	EmploymentSummary []affiliationSummary `json:"employment-summary"`
}

type personResponse struct {
	ExternalIdentifiers *struct {
		Items []struct {
			Type  *string     `json:"external-id-type"`
			Value *string     `json:"external-id-value"`
			URL   *valueField `json:"external-id-url"`
		} `json:"external-identifier"`
	} `json:"external-identifiers"`
	ResearcherURLs *struct {
		Items []struct {
			Name *string     `json:"url-name"`
			URL  *valueField `json:"url"`
		} `json:"researcher-url"`
	} `json:"researcher-urls"`
	OtherNames *struct {
		Items []struct {
			Content *string `json:"content"`
		} `json:"other-name"`
	} `json:"other-names"`
}

func (s affiliationSummary) simplify() Affiliation {
	a := Affiliation{
		Role:      s.RoleTitle,
		StartYear: s.StartDate.year(),
		EndYear:   s.EndDate.year(),
	}
	if o := s.Organization; o != nil {
		a.Institution = o.Name
		if o.Address != nil {
			a.City = o.Address.City
			a.Country = o.Address.Country
		}
		if o.Disambiguated != nil {
			a.Identifier = o.Disambiguated.Identifier
		}
	}
	return a
}
