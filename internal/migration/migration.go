// Package migration brings the schema and bootstrap data up to date on
// startup, so the service is usable out of the box for local and self-hosted
// environments.
package migration

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/elrep/internal/activity/domain"
	"github.com/smallbiznis/elrep/internal/config"
	"github.com/smallbiznis/elrep/internal/election/domain"
	"github.com/smallbiznis/elrep/internal/seed"
	"gorm.io/gorm"
)

func Run(db *gorm.DB, node *snowflake.Node, cfg config.Config) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	models := append(domain.Models(), &activitydomain.ActivityLogRecord{})
	if err := db.AutoMigrate(models...); err != nil {
		return err
	}

	if err := seed.EnsureDefaultOrg(db, node); err != nil {
		return err
	}
	return seed.LoadReferenceData(db, node, cfg.SeedFile)
}
