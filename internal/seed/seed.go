// Package seed bootstraps reference data for local and self-hosted
// deployments.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/elrep/internal/election/domain"
	"gorm.io/gorm"
)

const defaultOrgName = "Main"

// referenceState is one entry of the states reference file: a state and the
// jurisdictions (counties) within it.
type referenceState struct {
	State         string   `json:"state"`
	Jurisdictions []string `json:"jurisdictions"`
}

// EnsureDefaultOrg creates the default organization when none exists yet, so
// a fresh install can create elections immediately.
func EnsureDefaultOrg(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Organization{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(&domain.Organization{
			ID:   node.Generate(),
			Name: defaultOrgName,
		}).Error
	})
}

// LoadReferenceData loads the states/jurisdictions reference file into the
// state and jurisdiction tables. It runs only against empty tables; an
// already-seeded database is left untouched.
func LoadReferenceData(db *gorm.DB, node *snowflake.Node, path string) error {
	if path == "" {
		return nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var states []referenceState
	if err := json.Unmarshal(contents, &states); err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.State{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		for _, entry := range states {
			name := strings.TrimSpace(entry.State)
			if name == "" {
				continue
			}
			state := domain.State{
				ID:   node.Generate(),
				Name: name,
			}
			if err := tx.Create(&state).Error; err != nil {
				return err
			}
			for _, jurisdictionName := range entry.Jurisdictions {
				jurisdictionName = strings.TrimSpace(jurisdictionName)
				if jurisdictionName == "" {
					continue
				}
				err := tx.Create(&domain.Jurisdiction{
					ID:      node.Generate(),
					StateID: state.ID,
					Name:    jurisdictionName,
				}).Error
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}
