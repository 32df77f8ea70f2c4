package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Specification narrows a query. Repositories compose them instead of
// building WHERE clauses inline.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

// Apply chains specs onto db in order.
func Apply(db *gorm.DB, specs ...Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// ByID filters by primary key
type ByID struct {
	ID uuid.UUID
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

// Pagination limits and offsets the result set. Zero Limit means unbounded.
type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	if s.Limit > 0 {
		db = db.Limit(s.Limit)
	}
	if s.Offset > 0 {
		db = db.Offset(s.Offset)
	}
	return db
}
