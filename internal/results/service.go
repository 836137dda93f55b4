// Package results accepts vote tallies and aggregates them for reporting.
package results

import (
	"context"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/elrep/internal/activity/domain"
	"github.com/smallbiznis/elrep/internal/election/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubmitRequest is one jurisdiction's tally upload for a single precinct.
type SubmitRequest struct {
	Source   string           `json:"source"`
	Precinct string           `json:"precinct"`
	Contests []ContestTallies `json:"contests"`
}

type ContestTallies struct {
	ID         string           `json:"id"`
	Candidates []CandidateTally `json:"candidates"`
}

// CandidateTally carries numVotes as a string; the upstream data-entry
// client submits it quoted.
type CandidateTally struct {
	ID       string `json:"id"`
	NumVotes string `json:"numVotes"`
}

// StatusView counts the jurisdiction's precincts with and without an
// uploaded tally.
type StatusView struct {
	Uploaded    int `json:"uploaded"`
	NotUploaded int `json:"notUploaded"`
}

// ResultGroup is one (jurisdiction, precinct) slice of the aggregated view.
type ResultGroup struct {
	JurisdictionName string           `json:"jurisdictionName"`
	PrecinctName     string           `json:"precinctName"`
	Source           string           `json:"source"`
	CreatedAt        time.Time        `json:"createdAt"`
	Contests         []ContestResults `json:"contests"`
}

type ContestResults struct {
	ID               snowflake.ID      `json:"id"`
	Name             string            `json:"name"`
	AllowWriteIns    bool              `json:"allowWriteIns"`
	TotalBallotsCast int               `json:"totalBallotsCast"`
	Candidates       []CandidateResult `json:"candidates"`
}

type CandidateResult struct {
	ID       snowflake.ID `json:"id"`
	Name     string       `json:"name"`
	NumVotes int          `json:"numVotes"`
}

type Service interface {
	Submit(ctx context.Context, electionID, jurisdictionID snowflake.ID, actingUser string, req SubmitRequest) error
	Status(ctx context.Context, electionID, jurisdictionID snowflake.ID) (*StatusView, error)
	ElectionData(ctx context.Context, electionID snowflake.ID) ([]ResultGroup, error)
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	ActivitySvc activitydomain.Service
}

type service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	activitySvc activitydomain.Service
}

func NewService(p Params) Service {
	return &service{
		db:          p.DB,
		log:         p.Log.Named("results.service"),
		genID:       p.GenID,
		activitySvc: p.ActivitySvc,
	}
}

// Submit validates the tally payload and writes one ElectionResult row per
// candidate. A precinct that already has any tally row is rejected outright
// before any row is written; the (precinct, candidate) uniqueness constraint
// is the safety net for concurrent submissions.
func (s *service) Submit(ctx context.Context, electionID, jurisdictionID snowflake.ID, actingUser string, req SubmitRequest) error {
	source := domain.ElectionResultSource(req.Source)
	if !source.Valid() {
		return domain.NewValidationError("invalid source %q", req.Source)
	}
	if req.Precinct == "" {
		return domain.NewValidationError("missing required key 'precinct'")
	}
	if len(req.Contests) == 0 {
		return domain.NewValidationError("missing required key 'contests'")
	}
	precinctID, err := snowflake.ParseString(req.Precinct)
	if err != nil {
		return domain.NewValidationError("invalid precinct %q", req.Precinct)
	}

	seen := make(map[string]bool, len(req.Contests))
	for _, contest := range req.Contests {
		if seen[contest.ID] {
			return domain.NewConflictError("contests should be unique within a results upload")
		}
		seen[contest.ID] = true
	}

	var election domain.Election
	err = s.db.WithContext(ctx).Preload("Organization").First(&election, "id = ?", electionID).Error
	if err == gorm.ErrRecordNotFound {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	var jurisdiction domain.Jurisdiction
	err = s.db.WithContext(ctx).First(&jurisdiction, "id = ?", jurisdictionID).Error
	if err == gorm.ErrRecordNotFound {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&domain.ElectionResult{}).
			Where("precinct_id = ?", precinctID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.NewConflictError("Results for this precinct are already uploaded")
		}

		for _, contest := range req.Contests {
			for _, candidate := range contest.Candidates {
				candidateID, err := snowflake.ParseString(candidate.ID)
				if err != nil {
					return domain.NewValidationError("invalid candidate id %q", candidate.ID)
				}
				numVotes, err := strconv.Atoi(candidate.NumVotes)
				if err != nil || numVotes < 0 {
					return domain.NewValidationError("invalid vote count %q for candidate %s", candidate.NumVotes, candidate.ID)
				}
				err = tx.Create(&domain.ElectionResult{
					ID:          s.genID.Generate(),
					Source:      source,
					PrecinctID:  precinctID,
					CandidateID: candidateID,
					NumVotes:    numVotes,
				}).Error
				if err != nil {
					return err
				}
			}
		}

		orgName := ""
		if election.Organization != nil {
			orgName = election.Organization.Name
		}
		return s.activitySvc.Record(ctx, tx, activitydomain.ResultsRecorded{
			Timestamp: time.Now().UTC(),
			Base: activitydomain.Base{
				OrganizationID:   election.OrganizationID,
				OrganizationName: orgName,
				ElectionID:       election.ID,
				ElectionName:     election.Name,
				UserKey:          actingUser,
			},
			JurisdictionID:   jurisdiction.ID,
			JurisdictionName: jurisdiction.Name,
		})
	})
}

// Status reports how many of the jurisdiction's precincts have tallies.
func (s *service) Status(ctx context.Context, electionID, jurisdictionID snowflake.ID) (*StatusView, error) {
	var precinctIDs []snowflake.ID
	err := s.db.WithContext(ctx).Model(&domain.Precinct{}).
		Where("jurisdiction_id = ?", jurisdictionID).
		Pluck("id", &precinctIDs).Error
	if err != nil {
		return nil, err
	}

	view := &StatusView{}
	for _, precinctID := range precinctIDs {
		var count int64
		err := s.db.WithContext(ctx).Model(&domain.ElectionResult{}).
			Where("precinct_id = ?", precinctID).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count > 0 {
			view.Uploaded++
		} else {
			view.NotUploaded++
		}
	}
	return view, nil
}

type tallyRow struct {
	JurisdictionID   snowflake.ID
	JurisdictionName string
	PrecinctID       snowflake.ID
	PrecinctName     string
	ContestID        snowflake.ID
	ContestName      string
	AllowWriteIns    bool
	CandidateID      snowflake.ID
	CandidateName    string
	NumVotes         int
	Source           string
	CreatedAt        time.Time
}

// ElectionData builds the denormalized nested view from the flat tally rows.
// The stable sort order drives the grouping: a new group starts when the
// (jurisdiction, precinct) key changes, a new contest entry when the contest
// id changes within a group. Read-only.
func (s *service) ElectionData(ctx context.Context, electionID snowflake.ID) ([]ResultGroup, error) {
	var rows []tallyRow
	err := s.db.WithContext(ctx).
		Table("election_results").
		Select(`jurisdictions.id AS jurisdiction_id,
			jurisdictions.name AS jurisdiction_name,
			precincts.id AS precinct_id,
			precincts.name AS precinct_name,
			contests.id AS contest_id,
			contests.name AS contest_name,
			contests.allow_write_ins,
			candidates.id AS candidate_id,
			candidates.name AS candidate_name,
			election_results.num_votes,
			election_results.source,
			election_results.created_at`).
		Joins("JOIN precincts ON precincts.id = election_results.precinct_id").
		Joins("JOIN jurisdictions ON jurisdictions.id = precincts.jurisdiction_id").
		Joins("JOIN candidates ON candidates.id = election_results.candidate_id").
		Joins("JOIN contests ON contests.id = candidates.contest_id").
		Where("contests.election_id = ? AND election_results.deleted_at IS NULL", electionID).
		Order("jurisdictions.name, precincts.name, contests.id, candidates.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var groups []ResultGroup
	var prev groupKey
	for i, row := range rows {
		current := groupKey{row.JurisdictionID, row.PrecinctID}
		if i == 0 || current != prev {
			groups = append(groups, ResultGroup{
				JurisdictionName: row.JurisdictionName,
				PrecinctName:     row.PrecinctName,
				Source:           row.Source,
				CreatedAt:        row.CreatedAt,
			})
		}
		prev = current
		group := &groups[len(groups)-1]

		if len(group.Contests) == 0 || group.Contests[len(group.Contests)-1].ID != row.ContestID {
			group.Contests = append(group.Contests, ContestResults{
				ID:            row.ContestID,
				Name:          row.ContestName,
				AllowWriteIns: row.AllowWriteIns,
			})
		}
		contest := &group.Contests[len(group.Contests)-1]
		contest.Candidates = append(contest.Candidates, CandidateResult{
			ID:       row.CandidateID,
			Name:     row.CandidateName,
			NumVotes: row.NumVotes,
		})
		contest.TotalBallotsCast += row.NumVotes
	}
	return groups, nil
}

type groupKey struct {
	jurisdiction snowflake.ID
	precinct     snowflake.ID
}
