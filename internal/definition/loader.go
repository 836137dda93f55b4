// Package definition loads election-definition files into the relational
// schema as one atomic operation.
package definition

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/elrep/internal/election/domain"
	"github.com/smallbiznis/elrep/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	statePrefix  = "State of"
	countySuffix = "County"
)

type Loader struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func NewLoader(log *zap.Logger, genID *snowflake.Node) *Loader {
	return &Loader{
		log:   log.Named("definition.loader"),
		genID: genID,
	}
}

// Load upserts the document's jurisdiction links, precincts, contests and
// candidates under the election. It runs entirely inside tx: any unresolved
// state or county, or a duplicate contest, aborts the whole load with no
// partial writes. Committing tx is the caller's decision.
func (l *Loader) Load(ctx context.Context, tx *gorm.DB, election *domain.Election, doc *Document) error {
	return tx.Transaction(func(tx *gorm.DB) error {
		state, err := l.resolveState(ctx, tx, doc.State)
		if err != nil {
			return err
		}

		for _, county := range doc.Counties {
			jurisdiction, err := l.resolveJurisdiction(ctx, tx, state, county.Name)
			if err != nil {
				return err
			}
			if err := l.linkJurisdiction(ctx, tx, election, jurisdiction); err != nil {
				return err
			}
			for _, precinct := range county.Precincts {
				if err := l.ensurePrecinct(ctx, tx, jurisdiction, precinct); err != nil {
					return err
				}
			}
		}

		for _, contest := range doc.Contests {
			if err := l.createContest(ctx, tx, election, contest); err != nil {
				return err
			}
		}
		return nil
	})
}

// resolveState matches the document's state name against the seeded
// reference set, stripping a literal "State of" prefix.
func (l *Loader) resolveState(ctx context.Context, tx *gorm.DB, name string) (*domain.State, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), statePrefix))

	var state domain.State
	err := tx.WithContext(ctx).Where("name = ?", trimmed).First(&state).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NewValidationError("invalid state %q in definition file", name)
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// resolveJurisdiction matches a county name against the state's seeded
// jurisdictions, stripping a literal "County" suffix. Jurisdictions are
// never created here.
func (l *Loader) resolveJurisdiction(ctx context.Context, tx *gorm.DB, state *domain.State, name string) (*domain.Jurisdiction, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), countySuffix))

	var jurisdiction domain.Jurisdiction
	err := tx.WithContext(ctx).
		Where("state_id = ? AND name = ?", state.ID, trimmed).
		First(&jurisdiction).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NewValidationError("invalid county %q in definition file", name)
	}
	if err != nil {
		return nil, err
	}
	return &jurisdiction, nil
}

func (l *Loader) linkJurisdiction(ctx context.Context, tx *gorm.DB, election *domain.Election, jurisdiction *domain.Jurisdiction) error {
	var count int64
	err := tx.WithContext(ctx).Model(&domain.ElectionJurisdiction{}).
		Where("election_id = ? AND jurisdiction_id = ?", election.ID, jurisdiction.ID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&domain.ElectionJurisdiction{
		ElectionID:     election.ID,
		JurisdictionID: jurisdiction.ID,
		CreatedAt:      time.Now().UTC(),
	}).Error
}

func (l *Loader) ensurePrecinct(ctx context.Context, tx *gorm.DB, jurisdiction *domain.Jurisdiction, precinct Precinct) error {
	var existing domain.Precinct
	err := tx.WithContext(ctx).
		Where("jurisdiction_id = ? AND name = ?", jurisdiction.ID, precinct.Name).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return tx.WithContext(ctx).Create(&domain.Precinct{
		ID:                l.genID.Generate(),
		JurisdictionID:    jurisdiction.ID,
		Name:              precinct.Name,
		DefinitionsFileID: precinct.ID,
	}).Error
}

func (l *Loader) createContest(ctx context.Context, tx *gorm.DB, election *domain.Election, contest Contest) error {
	row := domain.Contest{
		ID:                l.genID.Generate(),
		ElectionID:        election.ID,
		Name:              contest.Title,
		Type:              contest.Type,
		Seats:             *contest.Seats,
		AllowWriteIns:     *contest.AllowWriteIns,
		DefinitionsFileID: contest.ID,
	}
	// Relies on the (election, name) uniqueness constraint: reloading the
	// same document surfaces a conflict instead of duplicating rows.
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.NewConflictError("contest %q already exists for this election", contest.Title)
		}
		return err
	}

	for _, candidate := range contest.Candidates {
		err := tx.WithContext(ctx).Create(&domain.Candidate{
			ID:                l.genID.Generate(),
			ContestID:         row.ID,
			Name:              candidate.Name,
			DefinitionsFileID: candidate.ID,
		}).Error
		if err != nil {
			return err
		}
	}

	if row.AllowWriteIns {
		// The write-in's external id is the declared-candidate count, a
		// positional placeholder rather than a definitions-file id.
		err := tx.WithContext(ctx).Create(&domain.Candidate{
			ID:                l.genID.Generate(),
			ContestID:         row.ID,
			Name:              domain.WriteInCandidateName,
			DefinitionsFileID: strconv.Itoa(len(contest.Candidates)),
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
