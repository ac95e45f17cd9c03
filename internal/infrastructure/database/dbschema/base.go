// Package dbschema defines the persisted GORM entities and their converters
// to and from the domain types. Each entity registers itself for
// auto-migration in init().
package dbschema

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel is embedded by every persisted entity.
type BaseModel struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
