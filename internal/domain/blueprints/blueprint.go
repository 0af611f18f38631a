package blueprints

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Blueprint struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string    `gorm:"column:code;not null;uniqueIndex:idx_blueprint_code" json:"code"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description string    `gorm:"column:description" json:"description,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Blueprint) TableName() string { return "blueprint" }

func (b *Blueprint) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Path is one schema field of a blueprint. A non-nil BlueprintEmbedID marks it
// as materialized from an embed rather than authored.
type Path struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BlueprintID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_blueprint_path_full,priority:1" json:"blueprint_id"`
	ParentID    *uuid.UUID     `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	FullPath    string         `gorm:"column:full_path;not null;uniqueIndex:idx_blueprint_path_full,priority:2" json:"full_path"`
	DataType    string         `gorm:"column:data_type;not null" json:"data_type"`
	SortOrder   int            `gorm:"column:sort_order;not null" json:"sort_order"`
	Config      datatypes.JSON `gorm:"column:config" json:"config,omitempty"`

	BlueprintEmbedID *uuid.UUID `gorm:"type:uuid;index" json:"blueprint_embed_id,omitempty"`
	SourcePathID     *uuid.UUID `gorm:"type:uuid" json:"source_path_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Path) TableName() string { return "blueprint_path" }

func (p *Path) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Path) Materialized() bool { return p != nil && p.BlueprintEmbedID != nil }

// Embed declares that BlueprintID embeds every field of EmbeddedBlueprintID,
// optionally nested under HostPathID.
type Embed struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BlueprintID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"blueprint_id"`
	EmbeddedBlueprintID uuid.UUID  `gorm:"type:uuid;not null;index" json:"embedded_blueprint_id"`
	HostPathID          *uuid.UUID `gorm:"type:uuid" json:"host_path_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Embed) TableName() string { return "blueprint_embed" }

func (e *Embed) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
