// Package repo – artifact statistics
//
// Small aggregate queries over the artifact table, logged at startup so
// operators can see how warm a persisted cache is.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/gridfinity-server/internal/domain"
)

// ArtifactStats returns the number of stored artifacts and the CreatedAt of
// the newest one. latest is nil when the table is empty.
func ArtifactStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.StoredArtifact{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Avoid MAX() -> TEXT in SQLite.
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
