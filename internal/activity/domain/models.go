package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityLogRecord is append-only: rows are never updated after creation
// except to set PostedAt once the notifier delivers them.
type ActivityLogRecord struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time         `gorm:"not null;index" json:"timestamp"`
	OrganizationID snowflake.ID      `gorm:"not null;index" json:"organization_id"`
	ActivityName   string            `gorm:"not null" json:"activity_name"`
	Info           datatypes.JSONMap `gorm:"not null" json:"info"`
	PostedAt       *time.Time        `json:"posted_at,omitempty"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *ActivityLogRecord) error
	// OldestUnposted returns the single oldest record without a posted
	// timestamp, optionally scoped to one organization. Nil when none.
	OldestUnposted(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) (*ActivityLogRecord, error)
	MarkPosted(ctx context.Context, db *gorm.DB, recordID snowflake.ID, postedAt time.Time) error
}

type Service interface {
	// Record appends one immutable activity record using the given
	// transactional handle; the caller decides when to commit.
	Record(ctx context.Context, tx *gorm.DB, activity Activity) error
}
