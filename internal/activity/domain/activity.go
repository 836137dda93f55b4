package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Activity is a domain event headed for the activity log. Each kind carries
// its own structured payload; rendering dispatches over the concrete type.
type Activity interface {
	// Name is the discriminator stored on the log record.
	Name() string
	ActivityBase() Base
	OccurredAt() time.Time
}

// Base carries the context shared by every activity kind.
type Base struct {
	OrganizationID   snowflake.ID `json:"organization_id"`
	OrganizationName string       `json:"organization_name"`
	ElectionID       snowflake.ID `json:"election_id"`
	ElectionName     string       `json:"election_name"`
	UserKey          string       `json:"user_key"`
}

type ElectionCreated struct {
	Timestamp time.Time `json:"timestamp"`
	Base      Base      `json:"base"`
}

func (a ElectionCreated) Name() string          { return "ElectionCreated" }
func (a ElectionCreated) ActivityBase() Base    { return a.Base }
func (a ElectionCreated) OccurredAt() time.Time { return a.Timestamp }

type ElectionDeleted struct {
	Timestamp time.Time `json:"timestamp"`
	Base      Base      `json:"base"`
}

func (a ElectionDeleted) Name() string          { return "ElectionDeleted" }
func (a ElectionDeleted) ActivityBase() Base    { return a.Base }
func (a ElectionDeleted) OccurredAt() time.Time { return a.Timestamp }

// FileUploaded records an upload-and-process step for one of the election's
// files. Error carries the processing failure, if any.
type FileUploaded struct {
	Timestamp time.Time `json:"timestamp"`
	Base      Base      `json:"base"`
	FileType  string    `json:"file_type"`
	Error     *string   `json:"error"`
}

func (a FileUploaded) Name() string          { return "FileUploaded" }
func (a FileUploaded) ActivityBase() Base    { return a.Base }
func (a FileUploaded) OccurredAt() time.Time { return a.Timestamp }

type ResultsRecorded struct {
	Timestamp        time.Time    `json:"timestamp"`
	Base             Base         `json:"base"`
	JurisdictionID   snowflake.ID `json:"jurisdiction_id"`
	JurisdictionName string       `json:"jurisdiction_name"`
}

func (a ResultsRecorded) Name() string          { return "ResultsRecorded" }
func (a ResultsRecorded) ActivityBase() Base    { return a.Base }
func (a ResultsRecorded) OccurredAt() time.Time { return a.Timestamp }

// DecodeActivity rebuilds the typed activity from a stored record.
func DecodeActivity(record *ActivityLogRecord) (Activity, error) {
	info, err := json.Marshal(record.Info)
	if err != nil {
		return nil, err
	}

	switch record.ActivityName {
	case "ElectionCreated":
		var a ElectionCreated
		if err := json.Unmarshal(info, &a); err != nil {
			return nil, err
		}
		a.Timestamp = record.Timestamp
		return a, nil
	case "ElectionDeleted":
		var a ElectionDeleted
		if err := json.Unmarshal(info, &a); err != nil {
			return nil, err
		}
		a.Timestamp = record.Timestamp
		return a, nil
	case "FileUploaded":
		var a FileUploaded
		if err := json.Unmarshal(info, &a); err != nil {
			return nil, err
		}
		a.Timestamp = record.Timestamp
		return a, nil
	case "ResultsRecorded":
		var a ResultsRecorded
		if err := json.Unmarshal(info, &a); err != nil {
			return nil, err
		}
		a.Timestamp = record.Timestamp
		return a, nil
	default:
		return nil, fmt.Errorf("unknown activity type: %s", record.ActivityName)
	}
}
