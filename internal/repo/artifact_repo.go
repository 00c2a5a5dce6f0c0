// Package repo – artifact repository
//
// Helpers for reading and writing cached artifacts. Rows are keyed by the
// cache key and never updated: a second write for the same key is a no-op,
// because equal keys always describe byte-identical artifacts.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/gridfinity-server/internal/domain"
)

// ErrNotFound is returned when no artifact is stored under a key.
var ErrNotFound = errors.New("not found")

// GetArtifact loads the artifact stored under key or returns ErrNotFound.
func GetArtifact(ctx context.Context, db *gorm.DB, key string) (*domain.StoredArtifact, error) {
	var rec domain.StoredArtifact
	err := db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutArtifact inserts an artifact. Existing rows are left untouched.
func PutArtifact(ctx context.Context, db *gorm.DB, key, contentType string, data []byte) error {
	rec := &domain.StoredArtifact{
		Key:         key,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}
