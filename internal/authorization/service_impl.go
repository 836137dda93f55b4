// Package authorization is the access-control gate consulted before any
// mutation begins.
package authorization

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectElection    = "election"
	ObjectResults     = "results"
	ObjectActivityLog = "activity_log"
)

const (
	ActionElectionCreate = "election.create"
	ActionElectionUpdate = "election.update"
	ActionElectionDelete = "election.delete"
	ActionElectionView   = "election.view"

	ActionResultsRecord = "results.record"
	ActionResultsView   = "results.view"

	ActionActivityLogView = "activity_log.view"
)

const (
	RoleElectionAdmin     = "role:election_admin"
	RoleJurisdictionAdmin = "role:jurisdiction_admin"
	RoleSystem            = "role:system"
)

var (
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
)

type Service interface {
	// Authorize permits or denies actor performing action on object within
	// the organization's domain.
	Authorize(ctx context.Context, actor string, orgID snowflake.ID, object string, action string) error
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{RoleElectionAdmin, "*", ObjectElection, ActionElectionCreate},
		{RoleElectionAdmin, "*", ObjectElection, ActionElectionUpdate},
		{RoleElectionAdmin, "*", ObjectElection, ActionElectionDelete},
		{RoleElectionAdmin, "*", ObjectElection, ActionElectionView},
		{RoleElectionAdmin, "*", ObjectResults, ActionResultsView},
		{RoleElectionAdmin, "*", ObjectActivityLog, ActionActivityLogView},

		{RoleJurisdictionAdmin, "*", ObjectElection, ActionElectionView},
		{RoleJurisdictionAdmin, "*", ObjectResults, ActionResultsRecord},
		{RoleJurisdictionAdmin, "*", ObjectResults, ActionResultsView},

		{RoleSystem, "*", ObjectElection, ActionElectionCreate},
		{RoleSystem, "*", ObjectElection, ActionElectionUpdate},
		{RoleSystem, "*", ObjectElection, ActionElectionDelete},
		{RoleSystem, "*", ObjectElection, ActionElectionView},
		{RoleSystem, "*", ObjectResults, ActionResultsRecord},
		{RoleSystem, "*", ObjectResults, ActionResultsView},
		{RoleSystem, "*", ObjectActivityLog, ActionActivityLogView},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2], policy[3]); err != nil {
			return err
		}
	}
	return nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, orgID snowflake.ID, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	if orgID == 0 {
		return ErrInvalidOrganization
	}

	subject, roleName, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		return err
	}

	domain := fmt.Sprintf("org:%s", orgID)
	if _, err := s.enforcer.AddGroupingPolicy(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("actor", actor),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, orgID snowflake.ID) (string, string, error) {
	if actor == "system" {
		return actor, RoleSystem, nil
	}
	if email, ok := strings.CutPrefix(actor, "user:"); ok {
		role, err := s.roleForUser(ctx, orgID, strings.ToLower(email))
		if err != nil {
			return "", "", err
		}
		return actor, role, nil
	}
	return "", "", ErrInvalidActor
}

// roleForUser resolves the stronger role first: an organization admin is an
// election admin; a user linked to any jurisdiction is a jurisdiction admin.
func (s *ServiceImpl) roleForUser(ctx context.Context, orgID snowflake.ID, email string) (string, error) {
	var count int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*)
		 FROM election_administrations ea
		 JOIN users u ON u.id = ea.user_id
		 WHERE ea.organization_id = ? AND u.email = ?`,
		orgID, email,
	).Scan(&count).Error
	if err != nil {
		return "", err
	}
	if count > 0 {
		return RoleElectionAdmin, nil
	}

	err = s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*)
		 FROM jurisdiction_administrations ja
		 JOIN users u ON u.id = ja.user_id
		 WHERE u.email = ?`,
		email,
	).Scan(&count).Error
	if err != nil {
		return "", err
	}
	if count > 0 {
		return RoleJurisdictionAdmin, nil
	}
	return "", ErrForbidden
}
