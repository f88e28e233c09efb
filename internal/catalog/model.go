package catalog

import (
	"github.com/millworks/backoffice/internal/database"
)

// Packaging is a kind of package items ship in, e.g. a poly bag or a 12-unit carton.
type Packaging struct {
	database.BaseModel
	Name            string  `gorm:"type:varchar(150);column:name;not null;uniqueIndex" json:"name"`
	Description     *string `gorm:"type:text;column:description" json:"description"`
	UnitsPerPackage int     `gorm:"column:units_per_package;not null;default:1" json:"units_per_package"`
	IsActive        bool    `gorm:"column:is_active;not null" json:"is_active"`
}

func (p *Packaging) TableName() string {
	return "packaging"
}

// Yarn is maintained by purchasing; production line items reference it.
type Yarn struct {
	database.BaseModel
	Name      string `gorm:"type:varchar(150);column:name;not null" json:"name"`
	ColorCode string `gorm:"type:varchar(50);column:color_code" json:"color_code"`
	Supplier  string `gorm:"type:varchar(150);column:supplier" json:"supplier"`
}

func (y *Yarn) TableName() string {
	return "yarns"
}

// YarnSummary is the denormalized yarn shown next to the lines that use it.
type YarnSummary struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	ColorCode string `json:"color_code"`
}

func (y *Yarn) Summary() *YarnSummary {
	return &YarnSummary{ID: y.ID, Name: y.Name, ColorCode: y.ColorCode}
}

// PackagingSummary is the denormalized packaging shown next to production lines.
type PackagingSummary struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	UnitsPerPackage int    `json:"units_per_package"`
}

func (p *Packaging) Summary() *PackagingSummary {
	return &PackagingSummary{ID: p.ID, Name: p.Name, UnitsPerPackage: p.UnitsPerPackage}
}

func Models() []any {
	return []any{&Packaging{}, &Yarn{}}
}

type CreatePackagingRequest struct {
	Name            string  `json:"name" binding:"required,max=150"`
	Description     *string `json:"description"`
	UnitsPerPackage int     `json:"units_per_package" binding:"required,gte=1"`
	IsActive        *bool   `json:"is_active"`
}

type UpdatePackagingRequest struct {
	Name            *string `json:"name" binding:"omitempty,min=1,max=150"`
	Description     *string `json:"description"`
	UnitsPerPackage *int    `json:"units_per_package" binding:"omitempty,gte=1"`
	IsActive        *bool   `json:"is_active"`
}

type PackagingFilter struct {
	Search   string
	IsActive *bool
}
