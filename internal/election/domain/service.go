package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateElectionRequest struct {
	OrganizationID    snowflake.ID
	Name              string
	PollsOpenAt       time.Time
	PollsCloseAt      time.Time
	PollsTimezone     string
	CertificationDate time.Time
	ActingUser        string

	JurisdictionsFileName string
	JurisdictionsFileData []byte
	DefinitionFileName    string
	DefinitionFileData    []byte
}

// DefinitionFileView is the stored definition rendered back out: contests
// with their candidates, plus the election's precincts.
type DefinitionFileView struct {
	Contests  []ContestView  `json:"contests"`
	Precincts []PrecinctView `json:"precincts"`
}

type ContestView struct {
	ID            snowflake.ID    `json:"id"`
	Name          string          `json:"name"`
	AllowWriteIns bool            `json:"allowWriteIns"`
	Candidates    []CandidateView `json:"candidates"`
}

type CandidateView struct {
	ID   snowflake.ID `json:"id"`
	Name string       `json:"name"`
}

type PrecinctView struct {
	ID   snowflake.ID `json:"id"`
	Name string       `json:"name"`
}

// FileView describes an uploaded file and its processing window without the
// contents blob.
type FileView struct {
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type FileProcessingView struct {
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Error       *string    `json:"error"`
}

type Service interface {
	CreateElection(ctx context.Context, req CreateElectionRequest) (*Election, error)
	DeleteElection(ctx context.Context, electionID snowflake.ID, actingUser string) error
	GetElection(ctx context.Context, electionID snowflake.ID) (*Election, error)
	GetDefinitionFile(ctx context.Context, electionID snowflake.ID) (*DefinitionFileView, error)
	GetJurisdictionsFile(ctx context.Context, electionID snowflake.ID) (*FileView, *FileProcessingView, error)
	UpdateJurisdictionsFile(ctx context.Context, electionID snowflake.ID, name string, contents []byte) error
}
