package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/elrep/internal/activity/domain"
	"github.com/smallbiznis/elrep/internal/definition"
	"github.com/smallbiznis/elrep/internal/election/domain"
	"github.com/smallbiznis/elrep/internal/fileprocess"
	"github.com/smallbiznis/elrep/internal/jurisdiction"
	"github.com/smallbiznis/elrep/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	fileTypeJurisdictions      = "jurisdictions"
	fileTypeElectionDefinition = "election_definition"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Definitions   *definition.Loader
	Jurisdictions *jurisdiction.Loader
	ActivitySvc   activitydomain.Service
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	definitions   *definition.Loader
	jurisdictions *jurisdiction.Loader
	activitySvc   activitydomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("election.service"),
		genID:         p.GenID,
		definitions:   p.Definitions,
		jurisdictions: p.Jurisdictions,
		activitySvc:   p.ActivitySvc,
	}
}

// CreateElection creates the election with its two uploaded files, then
// processes the definition file (which links jurisdictions and creates
// precincts, contests and candidates) and the jurisdictions file (which
// assigns jurisdiction admins). Each processing step runs in its own
// transaction; its outcome is recorded on the file row and in the activity
// log either way, and the first failure is returned to the caller.
func (s *Service) CreateElection(ctx context.Context, req domain.CreateElectionRequest) (*domain.Election, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// Both files must decode before anything is written.
	doc, err := definition.Decode(req.DefinitionFileData)
	if err != nil {
		return nil, err
	}
	pairs, err := jurisdiction.ParseFile(req.JurisdictionsFileData)
	if err != nil {
		return nil, err
	}

	var org domain.Organization
	err = s.db.WithContext(ctx).First(&org, "id = ?", req.OrganizationID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NewValidationError("invalid organization %q", req.OrganizationID)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	election := &domain.Election{
		ID:                s.genID.Generate(),
		OrganizationID:    org.ID,
		Name:              req.Name,
		PollsOpenAt:       req.PollsOpenAt.UTC(),
		PollsCloseAt:      req.PollsCloseAt.UTC(),
		PollsTimezone:     req.PollsTimezone,
		CertificationDate: req.CertificationDate.UTC(),
		JurisdictionsFile: &domain.File{
			ID:         s.genID.Generate(),
			Name:       req.JurisdictionsFileName,
			Contents:   string(req.JurisdictionsFileData),
			UploadedAt: now,
		},
		DefinitionFile: &domain.File{
			ID:         s.genID.Generate(),
			Name:       req.DefinitionFileName,
			Contents:   string(req.DefinitionFileData),
			UploadedAt: now,
		},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(election).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.NewConflictError("An election with name %q already exists within your organization", req.Name)
			}
			return err
		}
		return s.activitySvc.Record(ctx, tx, activitydomain.ElectionCreated{
			Timestamp: now,
			Base:      s.activityBase(&org, election, req.ActingUser),
		})
	})
	if err != nil {
		return nil, err
	}

	// The definition load comes first: it links the jurisdictions the
	// admin assignments below are matched against.
	defErr := s.processDefinitionFile(ctx, election, doc)
	s.recordFileUploaded(ctx, &org, election, req.ActingUser, fileTypeElectionDefinition, election.DefinitionFile)

	jurErr := s.processJurisdictionsFile(ctx, election, pairs)
	s.recordFileUploaded(ctx, &org, election, req.ActingUser, fileTypeJurisdictions, election.JurisdictionsFile)

	if defErr != nil {
		return election, defErr
	}
	if jurErr != nil {
		return election, jurErr
	}
	return election, nil
}

func (s *Service) processDefinitionFile(ctx context.Context, election *domain.Election, doc *definition.Document) error {
	return fileprocess.Process(ctx, s.db, election.DefinitionFile, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.definitions.Load(ctx, tx, election, doc)
		})
	})
}

func (s *Service) processJurisdictionsFile(ctx context.Context, election *domain.Election, pairs []jurisdiction.NameAndEmail) error {
	return fileprocess.Process(ctx, s.db, election.JurisdictionsFile, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := s.jurisdictions.BulkUpdateAdmins(ctx, tx, election, pairs)
			return err
		})
	})
}

func (s *Service) recordFileUploaded(ctx context.Context, org *domain.Organization, election *domain.Election, actingUser, fileType string, file *domain.File) {
	var timestamp time.Time
	if file.ProcessingStartedAt != nil {
		timestamp = *file.ProcessingStartedAt
	} else {
		timestamp = time.Now().UTC()
	}
	err := s.activitySvc.Record(ctx, s.db, activitydomain.FileUploaded{
		Timestamp: timestamp,
		Base:      s.activityBase(org, election, actingUser),
		FileType:  fileType,
		Error:     file.ProcessingError,
	})
	if err != nil {
		s.log.Warn("failed to record file upload activity", zap.String("file_type", fileType), zap.Error(err))
	}
}

func (s *Service) activityBase(org *domain.Organization, election *domain.Election, actingUser string) activitydomain.Base {
	return activitydomain.Base{
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		ElectionID:       election.ID,
		ElectionName:     election.Name,
		UserKey:          actingUser,
	}
}

// DeleteElection soft-deletes: the row stays in case the organization
// changes its mind, but access is gated on the deletion timestamp.
func (s *Service) DeleteElection(ctx context.Context, electionID snowflake.ID, actingUser string) error {
	election, err := s.GetElection(ctx, electionID)
	if err != nil {
		return err
	}

	var org domain.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", election.OrganizationID).Error; err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.Election{}, "id = ?", election.ID).Error; err != nil {
			return err
		}
		return s.activitySvc.Record(ctx, tx, activitydomain.ElectionDeleted{
			Timestamp: now,
			Base:      s.activityBase(&org, election, actingUser),
		})
	})
}

func (s *Service) GetElection(ctx context.Context, electionID snowflake.ID) (*domain.Election, error) {
	var election domain.Election
	err := s.db.WithContext(ctx).First(&election, "id = ?", electionID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &election, nil
}

// GetDefinitionFile renders the stored definition back out: the election's
// contests with candidates, and the precincts of its linked jurisdictions.
func (s *Service) GetDefinitionFile(ctx context.Context, electionID snowflake.ID) (*domain.DefinitionFileView, error) {
	election, err := s.GetElection(ctx, electionID)
	if err != nil {
		return nil, err
	}

	var contests []domain.Contest
	err = s.db.WithContext(ctx).
		Preload("Candidates").
		Where("election_id = ?", election.ID).
		Order("name").
		Find(&contests).Error
	if err != nil {
		return nil, err
	}

	var precincts []domain.Precinct
	err = s.db.WithContext(ctx).
		Where("jurisdiction_id IN (?)",
			s.db.Model(&domain.ElectionJurisdiction{}).
				Select("jurisdiction_id").
				Where("election_id = ?", election.ID),
		).
		Order("name").
		Find(&precincts).Error
	if err != nil {
		return nil, err
	}

	view := &domain.DefinitionFileView{
		Contests:  make([]domain.ContestView, 0, len(contests)),
		Precincts: make([]domain.PrecinctView, 0, len(precincts)),
	}
	for _, contest := range contests {
		contestView := domain.ContestView{
			ID:            contest.ID,
			Name:          contest.Name,
			AllowWriteIns: contest.AllowWriteIns,
			Candidates:    make([]domain.CandidateView, 0, len(contest.Candidates)),
		}
		for _, candidate := range contest.Candidates {
			contestView.Candidates = append(contestView.Candidates, domain.CandidateView{
				ID:   candidate.ID,
				Name: candidate.Name,
			})
		}
		view.Contests = append(view.Contests, contestView)
	}
	for _, precinct := range precincts {
		view.Precincts = append(view.Precincts, domain.PrecinctView{ID: precinct.ID, Name: precinct.Name})
	}
	return view, nil
}

// GetJurisdictionsFile returns the file's hot columns and processing window
// without loading the contents blob.
func (s *Service) GetJurisdictionsFile(ctx context.Context, electionID snowflake.ID) (*domain.FileView, *domain.FileProcessingView, error) {
	election, err := s.GetElection(ctx, electionID)
	if err != nil {
		return nil, nil, err
	}
	if election.JurisdictionsFileID == nil {
		return nil, nil, domain.ErrNotFound
	}

	var file domain.File
	err = s.db.WithContext(ctx).
		Omit("contents").
		First(&file, "id = ?", *election.JurisdictionsFileID).Error
	if err != nil {
		return nil, nil, err
	}

	return &domain.FileView{
			Name:       file.Name,
			UploadedAt: file.UploadedAt,
		}, &domain.FileProcessingView{
			StartedAt:   file.ProcessingStartedAt,
			CompletedAt: file.ProcessingCompletedAt,
			Error:       file.ProcessingError,
		}, nil
}

// UpdateJurisdictionsFile replaces the election's jurisdictions file and
// reprocesses the admin assignments against it.
func (s *Service) UpdateJurisdictionsFile(ctx context.Context, electionID snowflake.ID, name string, contents []byte) error {
	election, err := s.GetElection(ctx, electionID)
	if err != nil {
		return err
	}

	pairs, err := jurisdiction.ParseFile(contents)
	if err != nil {
		return err
	}

	file := &domain.File{
		ID:         s.genID.Generate(),
		Name:       name,
		Contents:   string(contents),
		UploadedAt: time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		if err := tx.Model(election).Update("jurisdictions_file_id", file.ID).Error; err != nil {
			return err
		}
		if election.JurisdictionsFileID != nil {
			if err := tx.Delete(&domain.File{}, "id = ?", *election.JurisdictionsFileID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	election.JurisdictionsFile = file
	election.JurisdictionsFileID = &file.ID

	return s.processJurisdictionsFile(ctx, election, pairs)
}

func validateRequest(req domain.CreateElectionRequest) error {
	switch {
	case req.OrganizationID == 0:
		return domain.NewValidationError("missing required key 'organizationId'")
	case req.Name == "":
		return domain.NewValidationError("missing required key 'electionName'")
	case req.PollsOpenAt.IsZero():
		return domain.NewValidationError("missing required key 'pollsOpen'")
	case req.PollsCloseAt.IsZero():
		return domain.NewValidationError("missing required key 'pollsClose'")
	case req.PollsTimezone == "":
		return domain.NewValidationError("missing required key 'pollsTimezone'")
	case req.CertificationDate.IsZero():
		return domain.NewValidationError("missing required key 'certificationDate'")
	case len(req.JurisdictionsFileData) == 0:
		return domain.NewValidationError("missing required file 'jurisdictions'")
	case len(req.DefinitionFileData) == 0:
		return domain.NewValidationError("missing required file 'definition'")
	}
	return nil
}
