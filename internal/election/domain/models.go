package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// All datetimes are stored in UTC. Uniqueness is enforced by the database
// constraints below, not assumed by callers.

type State struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null;uniqueIndex" json:"name"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`

	Jurisdictions []Jurisdiction `gorm:"constraint:OnDelete:CASCADE" json:"jurisdictions,omitempty"`
}

// Jurisdiction is typically a county. Jurisdictions are seeded from
// reference data and matched, never created, by the bulk loaders.
type Jurisdiction struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	StateID   snowflake.ID `gorm:"not null;uniqueIndex:idx_jurisdiction_state_name" json:"state_id"`
	Name      string       `gorm:"not null;uniqueIndex:idx_jurisdiction_state_name" json:"name"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`

	Precincts []Precinct `gorm:"constraint:OnDelete:CASCADE" json:"precincts,omitempty"`
}

type Precinct struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	JurisdictionID    snowflake.ID `gorm:"not null;uniqueIndex:idx_precinct_jurisdiction_name" json:"jurisdiction_id"`
	Name              string       `gorm:"not null;uniqueIndex:idx_precinct_jurisdiction_name" json:"name"`
	DefinitionsFileID string       `gorm:"not null" json:"definitions_file_id"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null" json:"updated_at"`
}

type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null;uniqueIndex" json:"name"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`

	Elections []Election `gorm:"constraint:OnDelete:CASCADE" json:"elections,omitempty"`
}

// Election keeps its uploaded files as exclusively owned rows: deleting the
// election deletes the files.
type Election struct {
	ID                snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrganizationID    snowflake.ID   `gorm:"not null;uniqueIndex:idx_election_org_name" json:"organization_id"`
	Name              string         `gorm:"not null;uniqueIndex:idx_election_org_name" json:"name"`
	PollsOpenAt       time.Time      `gorm:"not null" json:"polls_open_at"`
	PollsCloseAt      time.Time      `gorm:"not null" json:"polls_close_at"`
	PollsTimezone     string         `gorm:"not null" json:"polls_timezone"`
	CertificationDate time.Time      `gorm:"not null" json:"certification_date"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	JurisdictionsFileID *snowflake.ID `json:"jurisdictions_file_id,omitempty"`
	JurisdictionsFile   *File         `gorm:"foreignKey:JurisdictionsFileID;constraint:OnDelete:CASCADE" json:"-"`
	DefinitionFileID    *snowflake.ID `json:"definition_file_id,omitempty"`
	DefinitionFile      *File         `gorm:"foreignKey:DefinitionFileID;constraint:OnDelete:CASCADE" json:"-"`

	Organization  *Organization  `json:"organization,omitempty"`
	Contests      []Contest      `gorm:"constraint:OnDelete:CASCADE" json:"contests,omitempty"`
	Jurisdictions []Jurisdiction `gorm:"many2many:election_jurisdictions" json:"jurisdictions,omitempty"`
}

// ElectionJurisdiction links an election to a jurisdiction. Created when a
// definition file names the jurisdiction's county.
type ElectionJurisdiction struct {
	ElectionID     snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"election_id"`
	JurisdictionID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"jurisdiction_id"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

type Contest struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	ElectionID        snowflake.ID `gorm:"not null;uniqueIndex:idx_contest_election_name" json:"election_id"`
	Name              string       `gorm:"not null;uniqueIndex:idx_contest_election_name" json:"name"`
	Type              string       `gorm:"not null" json:"type"`
	Seats             int          `gorm:"not null" json:"seats"`
	AllowWriteIns     bool         `gorm:"not null" json:"allow_write_ins"`
	DefinitionsFileID string       `gorm:"not null" json:"definitions_file_id"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null" json:"updated_at"`

	Candidates []Candidate `gorm:"constraint:OnDelete:CASCADE" json:"candidates,omitempty"`
}

// WriteInCandidateName is the synthetic candidate appended to contests that
// allow write-ins.
const WriteInCandidateName = "Write-in"

type Candidate struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	ContestID         snowflake.ID `gorm:"not null;uniqueIndex:idx_candidate_contest_name" json:"contest_id"`
	Name              string       `gorm:"not null;uniqueIndex:idx_candidate_contest_name" json:"name"`
	DefinitionsFileID string       `gorm:"not null" json:"definitions_file_id"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null" json:"updated_at"`
}

type ElectionResultSource string

const (
	ResultSourceFile      ElectionResultSource = "FILE"
	ResultSourceDataEntry ElectionResultSource = "DATA_ENTRY"
)

func (s ElectionResultSource) Valid() bool {
	return s == ResultSourceFile || s == ResultSourceDataEntry
}

// ElectionResult is one candidate's tally for one precinct. At most one row
// may exist per (precinct, candidate); a second submission for the same
// precinct is rejected before any row is written.
type ElectionResult struct {
	ID          snowflake.ID         `gorm:"primaryKey" json:"id"`
	Source      ElectionResultSource `gorm:"not null" json:"source"`
	PrecinctID  snowflake.ID         `gorm:"not null;uniqueIndex:idx_result_precinct_candidate" json:"precinct_id"`
	CandidateID snowflake.ID         `gorm:"not null;uniqueIndex:idx_result_precinct_candidate" json:"candidate_id"`
	NumVotes    int                  `gorm:"not null" json:"num_votes"`
	CreatedAt   time.Time            `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time            `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt       `gorm:"index" json:"-"`
}

type User struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Email      string       `gorm:"not null;uniqueIndex" json:"email"`
	ExternalID *string      `gorm:"uniqueIndex" json:"external_id,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

// BeforeSave normalizes the email so lookups are case-insensitive.
func (u *User) BeforeSave(*gorm.DB) error {
	u.Email = strings.ToLower(u.Email)
	return nil
}

// ElectionAdministration links a user to an organization as an election admin.
type ElectionAdministration struct {
	OrganizationID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"organization_id"`
	UserID         snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

// JurisdictionAdministration links a user to a jurisdiction as a
// jurisdiction admin.
type JurisdictionAdministration struct {
	UserID         snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	JurisdictionID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"jurisdiction_id"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`

	User         *User         `json:"user,omitempty"`
	Jurisdiction *Jurisdiction `json:"jurisdiction,omitempty"`
}

// File stores an uploaded file plus the bookkeeping for processing it. The
// contents column is large and loaded on demand, never with the hot columns.
type File struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Name       string       `gorm:"not null" json:"name"`
	Contents   string       `gorm:"type:text;not null" json:"-"`
	UploadedAt time.Time    `gorm:"not null" json:"uploaded_at"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`

	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`
	ProcessingError       *string    `gorm:"type:text" json:"processing_error,omitempty"`
}

// Models lists every entity for schema migration, dependencies first.
func Models() []any {
	return []any{
		&State{},
		&Jurisdiction{},
		&Precinct{},
		&Organization{},
		&File{},
		&Election{},
		&ElectionJurisdiction{},
		&Contest{},
		&Candidate{},
		&ElectionResult{},
		&User{},
		&ElectionAdministration{},
		&JurisdictionAdministration{},
	}
}
