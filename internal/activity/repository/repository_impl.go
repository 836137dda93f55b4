package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/elrep/internal/activity/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.ActivityLogRecord) error {
	if record == nil {
		return nil
	}
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) OldestUnposted(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) (*domain.ActivityLogRecord, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.ActivityLogRecord{}).
		Where("posted_at IS NULL")
	if organizationID != 0 {
		stmt = stmt.Where("organization_id = ?", organizationID)
	}

	var record domain.ActivityLogRecord
	err := stmt.Order("timestamp asc, id asc").First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) MarkPosted(ctx context.Context, db *gorm.DB, recordID snowflake.ID, postedAt time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.ActivityLogRecord{}).
		Where("id = ?", recordID).
		Update("posted_at", postedAt.UTC()).Error
}
