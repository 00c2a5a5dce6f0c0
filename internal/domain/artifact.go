package domain

import "time"

// StoredArtifact is the persisted form of a cache entry used by the optional
// SQLite artifact store. Rows are written once and never updated.
type StoredArtifact struct {
	Key         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ContentType string    `gorm:"type:TEXT NOT NULL"`
	Data        []byte    `gorm:"type:BLOB NOT NULL"`
	CreatedAt   time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime;index"`
}

// TableName implements the GORM tabler interface.
func (StoredArtifact) TableName() string { return "artifacts" }
