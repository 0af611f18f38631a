package taxonomy

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Taxonomy struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code string    `gorm:"column:code;not null;uniqueIndex:idx_taxonomy_code" json:"code"`
	Name string    `gorm:"column:name;not null" json:"name"`

	// Hierarchical taxonomies accept parent assignments; flat ones (tags) do not.
	Hierarchical bool `gorm:"column:hierarchical;not null" json:"hierarchical"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Taxonomy) TableName() string { return "taxonomy" }

func (t *Taxonomy) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type Term struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TaxonomyID uuid.UUID `gorm:"type:uuid;not null;index:idx_taxonomy_term_taxonomy_slug,priority:1" json:"taxonomy_id"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	Slug       string    `gorm:"column:slug;not null;index:idx_taxonomy_term_taxonomy_slug,priority:2" json:"slug"`
	SortOrder  int       `gorm:"column:sort_order;not null" json:"sort_order"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Term) TableName() string { return "taxonomy_term" }

func (t *Term) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TermClosure is one (ancestor, descendant, depth) triple. Every term owns a
// self-edge at depth 0 and at most one depth-1 edge from its parent.
type TermClosure struct {
	AncestorID   uuid.UUID `gorm:"type:uuid;primaryKey;column:ancestor_id" json:"ancestor_id"`
	DescendantID uuid.UUID `gorm:"type:uuid;primaryKey;column:descendant_id;index:idx_term_closure_descendant_depth,priority:1" json:"descendant_id"`
	Depth        int       `gorm:"column:depth;not null;index:idx_term_closure_descendant_depth,priority:2" json:"depth"`
}

func (TermClosure) TableName() string { return "taxonomy_term_closure" }
