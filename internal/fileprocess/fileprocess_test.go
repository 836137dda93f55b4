package fileprocess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/elrep/internal/election/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupFile(t *testing.T) (*gorm.DB, *domain.File) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.File{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	file := &domain.File{
		ID:         node.Generate(),
		Name:       "definition.json",
		Contents:   "{}",
		UploadedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(file).Error)
	return db, file
}

func TestProcessSuccess(t *testing.T) {
	db, file := setupFile(t)

	err := Process(context.Background(), db, file, func() error { return nil })
	require.NoError(t, err)

	var stored domain.File
	require.NoError(t, db.First(&stored, "id = ?", file.ID).Error)
	assert.NotNil(t, stored.ProcessingStartedAt)
	assert.NotNil(t, stored.ProcessingCompletedAt)
	assert.Nil(t, stored.ProcessingError)
}

func TestProcessRecordsError(t *testing.T) {
	db, file := setupFile(t)

	workErr := errors.New(`invalid state "State of Atlantis" in definition file`)
	err := Process(context.Background(), db, file, func() error { return workErr })
	assert.Equal(t, workErr, err)

	// The failure is durable even though the work itself rolled back.
	var stored domain.File
	require.NoError(t, db.First(&stored, "id = ?", file.ID).Error)
	require.NotNil(t, stored.ProcessingError)
	assert.Equal(t, workErr.Error(), *stored.ProcessingError)
	assert.NotNil(t, stored.ProcessingCompletedAt)
}
