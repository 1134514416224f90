package models

import (
	"time"

	"github.com/uptrace/bun"
)

// FileChecksum stores the last processed content checksum of a source file.
type FileChecksum struct {
	bun.BaseModel `bun:"table:file_checksums,alias:fc"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	Identifier string    `bun:"identifier,unique,notnull" json:"identifier"`
	Checksum   string    `bun:"checksum,notnull" json:"checksum"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}
