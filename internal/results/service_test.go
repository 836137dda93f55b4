package results

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	activitydomain "github.com/smallbiznis/elrep/internal/activity/domain"
	activityrepo "github.com/smallbiznis/elrep/internal/activity/repository"
	activityservice "github.com/smallbiznis/elrep/internal/activity/service"
	"github.com/smallbiznis/elrep/internal/election/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db           *gorm.DB
	node         *snowflake.Node
	svc          Service
	election     *domain.Election
	jurisdiction *domain.Jurisdiction
	precincts    []domain.Precinct
	contest      *domain.Contest
	candidates   []domain.Candidate
}

func setupResults(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Models()...))
	require.NoError(t, db.AutoMigrate(&activitydomain.ActivityLogRecord{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	activitySvc := activityservice.NewService(activityservice.Params{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  activityrepo.Provide(),
	})
	svc := NewService(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		ActivitySvc: activitySvc,
	})

	f := &fixture{db: db, node: node, svc: svc}

	state := domain.State{ID: node.Generate(), Name: "California"}
	require.NoError(t, db.Create(&state).Error)
	org := domain.Organization{ID: node.Generate(), Name: "Main"}
	require.NoError(t, db.Create(&org).Error)

	election := domain.Election{
		ID:             node.Generate(),
		OrganizationID: org.ID,
		Name:           "General Election",
	}
	require.NoError(t, db.Create(&election).Error)
	f.election = &election

	jurisdiction := domain.Jurisdiction{ID: node.Generate(), StateID: state.ID, Name: "Alameda"}
	require.NoError(t, db.Create(&jurisdiction).Error)
	require.NoError(t, db.Create(&domain.ElectionJurisdiction{
		ElectionID:     election.ID,
		JurisdictionID: jurisdiction.ID,
	}).Error)
	f.jurisdiction = &jurisdiction

	for _, name := range []string{"Precinct 1", "Precinct 2"} {
		precinct := domain.Precinct{
			ID:                node.Generate(),
			JurisdictionID:    jurisdiction.ID,
			Name:              name,
			DefinitionsFileID: name,
		}
		require.NoError(t, db.Create(&precinct).Error)
		f.precincts = append(f.precincts, precinct)
	}

	contest := domain.Contest{
		ID:                node.Generate(),
		ElectionID:        election.ID,
		Name:              "Mayor",
		Type:              "office",
		Seats:             1,
		AllowWriteIns:     false,
		DefinitionsFileID: "c-1",
	}
	require.NoError(t, db.Create(&contest).Error)
	f.contest = &contest

	for _, name := range []string{"Amanda Reeves", "Victor Osei"} {
		candidate := domain.Candidate{
			ID:                node.Generate(),
			ContestID:         contest.ID,
			Name:              name,
			DefinitionsFileID: name,
		}
		require.NoError(t, db.Create(&candidate).Error)
		f.candidates = append(f.candidates, candidate)
	}

	return f
}

func (f *fixture) submitRequest(precinct domain.Precinct, votes ...string) SubmitRequest {
	tallies := make([]CandidateTally, 0, len(votes))
	for i, v := range votes {
		tallies = append(tallies, CandidateTally{ID: f.candidates[i].ID.String(), NumVotes: v})
	}
	return SubmitRequest{
		Source:   string(domain.ResultSourceDataEntry),
		Precinct: precinct.ID.String(),
		Contests: []ContestTallies{{ID: f.contest.ID.String(), Candidates: tallies}},
	}
}

func TestSubmitRecordsTallies(t *testing.T) {
	f := setupResults(t)
	ctx := context.Background()

	err := f.svc.Submit(ctx, f.election.ID, f.jurisdiction.ID, "user:alameda@example.gov",
		f.submitRequest(f.precincts[0], "10", "5"))
	require.NoError(t, err)

	var rows []domain.ElectionResult
	require.NoError(t, f.db.Where("precinct_id = ?", f.precincts[0].ID).Find(&rows).Error)
	require.Len(t, rows, 2)

	var record activitydomain.ActivityLogRecord
	require.NoError(t, f.db.First(&record).Error)
	assert.Equal(t, "ResultsRecorded", record.ActivityName)
	assert.Equal(t, f.election.OrganizationID, record.OrganizationID)
	assert.Nil(t, record.PostedAt)
}

func TestSubmitDuplicatePrecinctConflicts(t *testing.T) {
	f := setupResults(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Submit(ctx, f.election.ID, f.jurisdiction.ID, "system",
		f.submitRequest(f.precincts[0], "10", "5")))

	err := f.svc.Submit(ctx, f.election.ID, f.jurisdiction.ID, "system",
		f.submitRequest(f.precincts[0], "3", "4"))
	require.Error(t, err)
	var cErr *domain.ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "Results for this precinct are already uploaded", cErr.Message)

	// The first upload's rows survive untouched.
	var rows []domain.ElectionResult
	require.NoError(t, f.db.Where("precinct_id = ?", f.precincts[0].ID).Order("num_votes desc").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, 10, rows[0].NumVotes)
	assert.Equal(t, 5, rows[1].NumVotes)
}

func TestSubmitValidation(t *testing.T) {
	f := setupResults(t)
	ctx := context.Background()

	t.Run("bad source", func(t *testing.T) {
		req := f.submitRequest(f.precincts[0], "1", "2")
		req.Source = "EMAIL"
		err := f.svc.Submit(ctx, f.election.ID, f.jurisdiction.ID, "system", req)
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("duplicate contests", func(t *testing.T) {
		req := f.submitRequest(f.precincts[0], "1", "2")
		req.Contests = append(req.Contests, req.Contests[0])
		err := f.svc.Submit(ctx, f.election.ID, f.jurisdiction.ID, "system", req)
		var cErr *domain.ConflictError
		assert.ErrorAs(t, err, &cErr)
	})

	t.Run("negative votes", func(t *testing.T) {
		req := f.submitRequest(f.precincts[0], "-1", "2")
		err := f.svc.Submit(ctx, f.election.ID, f.jurisdiction.ID, "system", req)
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("unknown election", func(t *testing.T) {
		err := f.svc.Submit(ctx, f.node.Generate(), f.jurisdiction.ID, "system",
			f.submitRequest(f.precincts[0], "1", "2"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStatusCountsPrecincts(t *testing.T) {
	f := setupResults(t)
	ctx := context.Background()

	view, err := f.svc.Status(ctx, f.election.ID, f.jurisdiction.ID)
	require.NoError(t, err)
	assert.Equal(t, &StatusView{Uploaded: 0, NotUploaded: 2}, view)

	require.NoError(t, f.svc.Submit(ctx, f.election.ID, f.jurisdiction.ID, "system",
		f.submitRequest(f.precincts[0], "10", "5")))

	view, err = f.svc.Status(ctx, f.election.ID, f.jurisdiction.ID)
	require.NoError(t, err)
	assert.Equal(t, &StatusView{Uploaded: 1, NotUploaded: 1}, view)
}

func TestElectionDataAggregation(t *testing.T) {
	f := setupResults(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Submit(ctx, f.election.ID, f.jurisdiction.ID, "system",
		f.submitRequest(f.precincts[0], "10", "5")))
	require.NoError(t, f.svc.Submit(ctx, f.election.ID, f.jurisdiction.ID, "system",
		f.submitRequest(f.precincts[1], "7", "3")))

	groups, err := f.svc.ElectionData(ctx, f.election.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	first := groups[0]
	assert.Equal(t, "Alameda", first.JurisdictionName)
	assert.Equal(t, "Precinct 1", first.PrecinctName)
	require.Len(t, first.Contests, 1)
	assert.Equal(t, "Mayor", first.Contests[0].Name)
	assert.Equal(t, 15, first.Contests[0].TotalBallotsCast)
	require.Len(t, first.Contests[0].Candidates, 2)
	assert.Equal(t, "Amanda Reeves", first.Contests[0].Candidates[0].Name)
	assert.Equal(t, 10, first.Contests[0].Candidates[0].NumVotes)

	second := groups[1]
	assert.Equal(t, "Precinct 2", second.PrecinctName)
	assert.Equal(t, 10, second.Contests[0].TotalBallotsCast)
}
