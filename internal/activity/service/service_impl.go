package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/elrep/internal/activity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("activity.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Record snapshots the activity's payload into one append-only log record.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, activity domain.Activity) error {
	info, err := snapshot(activity)
	if err != nil {
		return err
	}

	record := domain.ActivityLogRecord{
		ID:             s.genID.Generate(),
		Timestamp:      activity.OccurredAt().UTC(),
		OrganizationID: activity.ActivityBase().OrganizationID,
		ActivityName:   activity.Name(),
		Info:           info,
	}
	if err := s.repo.Insert(ctx, tx, &record); err != nil {
		s.log.Warn("failed to write activity record", zap.String("activity", activity.Name()), zap.Error(err))
		return err
	}
	return nil
}

func snapshot(activity domain.Activity) (datatypes.JSONMap, error) {
	raw, err := json.Marshal(activity)
	if err != nil {
		return nil, err
	}
	var info map[string]any
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, err
	}
	return datatypes.JSONMap(info), nil
}
