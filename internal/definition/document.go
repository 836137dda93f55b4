package definition

import (
	"encoding/json"

	"github.com/smallbiznis/elrep/internal/election/domain"
)

// Document is the election-definition file: the state and its counties with
// precincts, plus the contests with their candidates. Extraneous top-level
// keys are tolerated; the nested arrays are validated strictly.
type Document struct {
	Title    string    `json:"title"`
	State    string    `json:"state"`
	Counties []County  `json:"counties"`
	Contests []Contest `json:"contests"`
}

type County struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Precincts []Precinct `json:"precincts"`
}

type Precinct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Contest struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	Title         string      `json:"title"`
	Seats         *int        `json:"seats"`
	AllowWriteIns *bool       `json:"allowWriteIns"`
	Candidates    []Candidate `json:"candidates"`
}

type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Decode parses and validates a definition document.
func Decode(contents []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(contents, &doc); err != nil {
		return nil, domain.NewValidationError("malformed definition file: %v", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) validate() error {
	if d.State == "" {
		return domain.NewValidationError("definition file is missing required key 'state'")
	}
	if d.Counties == nil {
		return domain.NewValidationError("definition file is missing required key 'counties'")
	}
	if d.Contests == nil {
		return domain.NewValidationError("definition file is missing required key 'contests'")
	}
	for i, county := range d.Counties {
		if county.ID == "" || county.Name == "" {
			return domain.NewValidationError("counties[%d] is missing required keys 'id' and 'name'", i)
		}
		for j, precinct := range county.Precincts {
			if precinct.ID == "" || precinct.Name == "" {
				return domain.NewValidationError("counties[%d].precincts[%d] is missing required keys 'id' and 'name'", i, j)
			}
		}
	}
	for i, contest := range d.Contests {
		switch {
		case contest.ID == "":
			return domain.NewValidationError("contests[%d] is missing required key 'id'", i)
		case contest.Title == "":
			return domain.NewValidationError("contests[%d] is missing required key 'title'", i)
		case contest.Type == "":
			return domain.NewValidationError("contests[%d] is missing required key 'type'", i)
		case contest.Seats == nil:
			return domain.NewValidationError("contests[%d] is missing required key 'seats'", i)
		case contest.AllowWriteIns == nil:
			return domain.NewValidationError("contests[%d] is missing required key 'allowWriteIns'", i)
		case contest.Candidates == nil:
			return domain.NewValidationError("contests[%d] is missing required key 'candidates'", i)
		}
		for j, candidate := range contest.Candidates {
			if candidate.ID == "" || candidate.Name == "" {
				return domain.NewValidationError("contests[%d].candidates[%d] is missing required keys 'id' and 'name'", i, j)
			}
		}
	}
	return nil
}
