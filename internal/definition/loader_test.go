package definition

import (
	"context"
	"strconv"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/elrep/internal/election/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupLoader(t *testing.T) (*Loader, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewLoader(zap.NewNop(), node), db, node
}

func seedReference(t *testing.T, db *gorm.DB, node *snowflake.Node) (domain.State, domain.Jurisdiction) {
	t.Helper()

	state := domain.State{ID: node.Generate(), Name: "California"}
	require.NoError(t, db.Create(&state).Error)
	jurisdiction := domain.Jurisdiction{ID: node.Generate(), StateID: state.ID, Name: "Alameda"}
	require.NoError(t, db.Create(&jurisdiction).Error)
	return state, jurisdiction
}

func seedElection(t *testing.T, db *gorm.DB, node *snowflake.Node) *domain.Election {
	t.Helper()

	org := domain.Organization{ID: node.Generate(), Name: "Main"}
	require.NoError(t, db.Create(&org).Error)
	election := domain.Election{
		ID:             node.Generate(),
		OrganizationID: org.ID,
		Name:           "General Election",
		PollsTimezone:  "America/Los_Angeles",
	}
	require.NoError(t, db.Create(&election).Error)
	return &election
}

func testDocument() *Document {
	seats := 1
	writeIns := true
	noWriteIns := false
	return &Document{
		Title: "General Election",
		State: "State of California",
		Counties: []County{
			{
				ID:   "county-1",
				Name: "Alameda County",
				Precincts: []Precinct{
					{ID: "p-1", Name: "Precinct 1"},
					{ID: "p-2", Name: "Precinct 2"},
				},
			},
		},
		Contests: []Contest{
			{
				ID:            "c-1",
				Type:          "office",
				Title:         "Mayor",
				Seats:         &seats,
				AllowWriteIns: &writeIns,
				Candidates: []Candidate{
					{ID: "cand-1", Name: "Amanda Reeves"},
					{ID: "cand-2", Name: "Victor Osei"},
				},
			},
			{
				ID:            "c-2",
				Type:          "referendum",
				Title:         "Measure B",
				Seats:         &seats,
				AllowWriteIns: &noWriteIns,
				Candidates: []Candidate{
					{ID: "cand-3", Name: "Yes"},
					{ID: "cand-4", Name: "No"},
				},
			},
		},
	}
}

func TestLoadDefinition(t *testing.T) {
	loader, db, node := setupLoader(t)
	_, jurisdiction := seedReference(t, db, node)
	election := seedElection(t, db, node)

	err := loader.Load(context.Background(), db, election, testDocument())
	require.NoError(t, err)

	var link domain.ElectionJurisdiction
	require.NoError(t, db.First(&link, "election_id = ?", election.ID).Error)
	assert.Equal(t, jurisdiction.ID, link.JurisdictionID)

	var precincts []domain.Precinct
	require.NoError(t, db.Where("jurisdiction_id = ?", jurisdiction.ID).Find(&precincts).Error)
	assert.Len(t, precincts, 2)

	var contests []domain.Contest
	require.NoError(t, db.Where("election_id = ?", election.ID).Order("name").Find(&contests).Error)
	require.Len(t, contests, 2)
	assert.Equal(t, "Mayor", contests[0].Name)
	assert.True(t, contests[0].AllowWriteIns)
	assert.Equal(t, "Measure B", contests[1].Name)
	assert.False(t, contests[1].AllowWriteIns)
}

func TestLoadDefinitionWriteInCandidate(t *testing.T) {
	loader, db, node := setupLoader(t)
	seedReference(t, db, node)
	election := seedElection(t, db, node)

	require.NoError(t, loader.Load(context.Background(), db, election, testDocument()))

	var mayor domain.Contest
	require.NoError(t, db.First(&mayor, "election_id = ? AND name = ?", election.ID, "Mayor").Error)

	var candidates []domain.Candidate
	require.NoError(t, db.Where("contest_id = ?", mayor.ID).Order("created_at, id").Find(&candidates).Error)
	require.Len(t, candidates, 3)
	writeIn := candidates[len(candidates)-1]
	assert.Equal(t, domain.WriteInCandidateName, writeIn.Name)
	assert.Equal(t, strconv.Itoa(2), writeIn.DefinitionsFileID)

	var measure domain.Contest
	require.NoError(t, db.First(&measure, "election_id = ? AND name = ?", election.ID, "Measure B").Error)
	var measureCandidates []domain.Candidate
	require.NoError(t, db.Where("contest_id = ?", measure.ID).Find(&measureCandidates).Error)
	assert.Len(t, measureCandidates, 2)
}

func TestLoadDefinitionReloadConflicts(t *testing.T) {
	loader, db, node := setupLoader(t)
	seedReference(t, db, node)
	election := seedElection(t, db, node)

	require.NoError(t, loader.Load(context.Background(), db, election, testDocument()))

	err := loader.Load(context.Background(), db, election, testDocument())
	require.Error(t, err)
	var cErr *domain.ConflictError
	assert.ErrorAs(t, err, &cErr)
	assert.Contains(t, err.Error(), "already exists for this election")
}

func TestLoadDefinitionUnknownStateAborts(t *testing.T) {
	loader, db, node := setupLoader(t)
	seedReference(t, db, node)
	election := seedElection(t, db, node)

	doc := testDocument()
	doc.State = "State of Atlantis"

	err := loader.Load(context.Background(), db, election, doc)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.Contains(t, err.Error(), "invalid state")

	// Nothing committed.
	var contests int64
	require.NoError(t, db.Model(&domain.Contest{}).Count(&contests).Error)
	assert.Zero(t, contests)
	var links int64
	require.NoError(t, db.Model(&domain.ElectionJurisdiction{}).Count(&links).Error)
	assert.Zero(t, links)
}

func TestLoadDefinitionUnknownCountyAborts(t *testing.T) {
	loader, db, node := setupLoader(t)
	seedReference(t, db, node)
	election := seedElection(t, db, node)

	doc := testDocument()
	doc.Counties[0].Name = "Shelby County"

	err := loader.Load(context.Background(), db, election, doc)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.Contains(t, err.Error(), "invalid county")

	var precincts int64
	require.NoError(t, db.Model(&domain.Precinct{}).Count(&precincts).Error)
	assert.Zero(t, precincts)
}
