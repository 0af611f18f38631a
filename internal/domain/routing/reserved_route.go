package routing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReservedKindPath   = "path"
	ReservedKindPrefix = "prefix"

	ReservedSourceAdmin = "admin"
)

// ReservedRoute is a dynamically registered path or prefix that catch-all
// slug routing must never claim. Source names the registering plugin or system.
type ReservedRoute struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Path   string    `gorm:"column:path;not null;uniqueIndex:idx_reserved_route_path_kind,priority:1" json:"path"`
	Kind   string    `gorm:"column:kind;not null;uniqueIndex:idx_reserved_route_path_kind,priority:2" json:"kind"`
	Source string    `gorm:"column:source;not null;index" json:"source"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ReservedRoute) TableName() string { return "reserved_route" }

func (r *ReservedRoute) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
