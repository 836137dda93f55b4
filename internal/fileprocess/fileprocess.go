// Package fileprocess records the processing window around a unit of work
// operating on an uploaded file.
package fileprocess

import (
	"context"
	"time"

	"github.com/smallbiznis/elrep/internal/election/domain"
	"gorm.io/gorm"
)

// Process records ProcessingStartedAt, runs fn, and records
// ProcessingCompletedAt. On failure the error message is captured on the
// file and the error is returned so the caller's transaction still aborts.
// Only the file's processing fields are mutated here; everything else
// happens inside fn's own transaction scope.
func Process(ctx context.Context, db *gorm.DB, file *domain.File, fn func() error) error {
	startedAt := time.Now().UTC()
	file.ProcessingStartedAt = &startedAt
	if err := saveProcessingFields(ctx, db, file); err != nil {
		return err
	}

	workErr := fn()

	if workErr != nil {
		message := workErr.Error()
		file.ProcessingError = &message
	}
	completedAt := time.Now().UTC()
	file.ProcessingCompletedAt = &completedAt
	if err := saveProcessingFields(ctx, db, file); err != nil {
		return err
	}

	return workErr
}

func saveProcessingFields(ctx context.Context, db *gorm.DB, file *domain.File) error {
	return db.WithContext(ctx).Model(&domain.File{}).
		Where("id = ?", file.ID).
		Updates(map[string]any{
			"processing_started_at":   file.ProcessingStartedAt,
			"processing_completed_at": file.ProcessingCompletedAt,
			"processing_error":        file.ProcessingError,
		}).Error
}
