package cache

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/gridfinity-server/internal/domain"
	"github.com/tbourn/gridfinity-server/internal/repo"
)

// SQLiteStore persists entries in the artifact table so a restarted server
// starts warm.
type SQLiteStore struct {
	DB *gorm.DB
}

// NewSQLiteStore wraps an opened and migrated database.
func NewSQLiteStore(db *gorm.DB) *SQLiteStore { return &SQLiteStore{DB: db} }

func (s *SQLiteStore) Get(ctx context.Context, key domain.CacheKey) (Entry, bool, error) {
	rec, err := repo.GetArtifact(ctx, s.DB, string(key))
	if errors.Is(err, repo.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Data: rec.Data, ContentType: rec.ContentType}, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key domain.CacheKey, e Entry) error {
	return repo.PutArtifact(ctx, s.DB, string(key), e.ContentType, e.Data)
}
