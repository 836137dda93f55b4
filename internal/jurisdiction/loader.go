// Package jurisdiction synchronizes jurisdiction admins from an uploaded
// jurisdictions file.
package jurisdiction

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/elrep/internal/election/domain"
	"github.com/smallbiznis/elrep/pkg/csvparse"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ColumnJurisdiction = "Jurisdiction"
	ColumnAdminEmail   = "Admin Email"
)

// Columns is the jurisdictions-file shape: both columns unique within the
// file, emails syntactically validated before the loader runs.
var Columns = []csvparse.Column{
	{Name: ColumnJurisdiction, Type: csvparse.Text, Unique: true},
	{Name: ColumnAdminEmail, Type: csvparse.Email, Unique: true},
}

// NameAndEmail is one parsed row: a jurisdiction name and its admin's email.
type NameAndEmail struct {
	Name  string
	Email string
}

// ParseFile decodes the raw CSV into (jurisdiction, admin email) pairs.
func ParseFile(contents []byte) ([]NameAndEmail, error) {
	rows, err := csvparse.Parse(contents, Columns)
	if err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}
	pairs := make([]NameAndEmail, 0, len(rows))
	for _, row := range rows {
		pairs = append(pairs, NameAndEmail{Name: row[ColumnJurisdiction], Email: row[ColumnAdminEmail]})
	}
	return pairs, nil
}

type Loader struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func NewLoader(log *zap.Logger, genID *snowflake.Node) *Loader {
	return &Loader{
		log:   log.Named("jurisdiction.loader"),
		genID: genID,
	}
}

// BulkUpdateAdmins replaces the admin links for every jurisdiction already
// associated with the election: full replace, not merge. Users are
// found-or-created by lowercased email; jurisdictions are only matched
// against those linked to the election. Runs inside tx as one atomic batch;
// committing tx is the caller's decision. Returns the newly created links.
func (l *Loader) BulkUpdateAdmins(ctx context.Context, tx *gorm.DB, election *domain.Election, pairs []NameAndEmail) ([]domain.JurisdictionAdministration, error) {
	var admins []domain.JurisdictionAdministration

	err := tx.Transaction(func(tx *gorm.DB) error {
		// Clear existing admins for this election's jurisdictions.
		err := tx.WithContext(ctx).
			Where("jurisdiction_id IN (?)",
				tx.Model(&domain.ElectionJurisdiction{}).
					Select("jurisdiction_id").
					Where("election_id = ?", election.ID),
			).
			Delete(&domain.JurisdictionAdministration{}).Error
		if err != nil {
			return err
		}

		for _, pair := range pairs {
			user, err := l.findOrCreateUser(ctx, tx, pair.Email)
			if err != nil {
				return err
			}

			var jurisdiction domain.Jurisdiction
			err = tx.WithContext(ctx).
				Joins("JOIN election_jurisdictions ej ON ej.jurisdiction_id = jurisdictions.id AND ej.election_id = ?", election.ID).
				Where("jurisdictions.name = ?", pair.Name).
				First(&jurisdiction).Error
			if err == gorm.ErrRecordNotFound {
				return domain.NewValidationError("Invalid Jurisdiction")
			}
			if err != nil {
				return err
			}

			admin := domain.JurisdictionAdministration{
				UserID:         user.ID,
				JurisdictionID: jurisdiction.ID,
				CreatedAt:      time.Now().UTC(),
			}
			if err := tx.WithContext(ctx).Create(&admin).Error; err != nil {
				return err
			}
			admins = append(admins, admin)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return admins, nil
}

func (l *Loader) findOrCreateUser(ctx context.Context, tx *gorm.DB, email string) (*domain.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	var user domain.User
	err := tx.WithContext(ctx).Where("email = ?", normalized).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	user = domain.User{
		ID:    l.genID.Generate(),
		Email: normalized,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
