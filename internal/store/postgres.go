package store

import (
	"context"

	"gorm.io/gorm"
)

// Postgres implements Store on top of a GORM handle. All SQL is parameterized.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres wraps db, typically the handle returned by database.Connect.
func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

var _ Store = (*Postgres)(nil)

func (p *Postgres) conn(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx)
}
