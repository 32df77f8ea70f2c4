package scope

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func OrderBySeqAsc(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

func OrderBySeqDesc(db *gorm.DB) *gorm.DB {
	return db.Order("seq DESC")
}

// OrderByActivityDesc puts the most recently active chat first; id breaks ties
// so the listing is stable.
func OrderByActivityDesc(db *gorm.DB) *gorm.DB {
	return db.Order("last_activity DESC").Order("id DESC")
}

// LockForUpdate takes a row lock for the rest of the transaction.
func LockForUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
