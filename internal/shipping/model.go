package shipping

import (
	"github.com/shopspring/decimal"

	"github.com/millworks/backoffice/internal/database"
)

// Measurements go over the wire as JSON numbers.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type MeasurementUnit string

const (
	MeasurementUnitImperial MeasurementUnit = "imperial"
	MeasurementUnitMetric   MeasurementUnit = "metric"
)

// DimensionPreset is a named box size offered when building a shipment.
type DimensionPreset struct {
	database.BaseModel
	Name            string          `gorm:"type:varchar(150);column:name;not null;uniqueIndex" json:"name"`
	Length          decimal.Decimal `gorm:"type:numeric(10,2);column:length;not null" json:"length"`
	Width           decimal.Decimal `gorm:"type:numeric(10,2);column:width;not null" json:"width"`
	Height          decimal.Decimal `gorm:"type:numeric(10,2);column:height;not null" json:"height"`
	MeasurementUnit MeasurementUnit `gorm:"type:varchar(10);column:measurement_unit;not null" json:"measurement_unit"`
	IsActive        bool            `gorm:"column:is_active;not null" json:"is_active"`
}

func (d *DimensionPreset) TableName() string {
	return "shipping_dimension_presets"
}

type WeightPreset struct {
	database.BaseModel
	Name            string          `gorm:"type:varchar(150);column:name;not null;uniqueIndex" json:"name"`
	Weight          decimal.Decimal `gorm:"type:numeric(10,3);column:weight;not null" json:"weight"`
	MeasurementUnit MeasurementUnit `gorm:"type:varchar(10);column:measurement_unit;not null" json:"measurement_unit"`
	IsActive        bool            `gorm:"column:is_active;not null" json:"is_active"`
}

func (w *WeightPreset) TableName() string {
	return "shipping_weight_presets"
}

// PackageSpecItem places a quantity of a production order item into a package spec.
type PackageSpecItem struct {
	database.BaseModel
	PackageSpecID     uint `gorm:"column:package_spec_id;not null;index" json:"package_spec_id"`
	ProductionOrderID uint `gorm:"column:production_order_id;not null" json:"production_order_id"`
	ItemID            uint `gorm:"column:item_id;not null;index" json:"item_id"`
	Quantity          int  `gorm:"column:quantity;not null" json:"quantity"`
}

func (p *PackageSpecItem) TableName() string {
	return "shipping_package_spec_items"
}

func Models() []any {
	return []any{&DimensionPreset{}, &WeightPreset{}, &PackageSpecItem{}}
}

// PresetFilter applies to both preset lists.
type PresetFilter struct {
	Search          string
	IsActive        *bool
	MeasurementUnit MeasurementUnit
}

type CreateDimensionPresetRequest struct {
	Name            string           `json:"name" binding:"required,max=150"`
	Length          *decimal.Decimal `json:"length" binding:"required"`
	Width           *decimal.Decimal `json:"width" binding:"required"`
	Height          *decimal.Decimal `json:"height" binding:"required"`
	MeasurementUnit MeasurementUnit  `json:"measurement_unit" binding:"required,oneof=imperial metric"`
	IsActive        *bool            `json:"is_active"`
}

type UpdateDimensionPresetRequest struct {
	Name            *string          `json:"name" binding:"omitempty,min=1,max=150"`
	Length          *decimal.Decimal `json:"length"`
	Width           *decimal.Decimal `json:"width"`
	Height          *decimal.Decimal `json:"height"`
	MeasurementUnit *MeasurementUnit `json:"measurement_unit" binding:"omitempty,oneof=imperial metric"`
	IsActive        *bool            `json:"is_active"`
}

type CreateWeightPresetRequest struct {
	Name            string           `json:"name" binding:"required,max=150"`
	Weight          *decimal.Decimal `json:"weight" binding:"required"`
	MeasurementUnit MeasurementUnit  `json:"measurement_unit" binding:"required,oneof=imperial metric"`
	IsActive        *bool            `json:"is_active"`
}

type UpdateWeightPresetRequest struct {
	Name            *string          `json:"name" binding:"omitempty,min=1,max=150"`
	Weight          *decimal.Decimal `json:"weight"`
	MeasurementUnit *MeasurementUnit `json:"measurement_unit" binding:"omitempty,oneof=imperial metric"`
	IsActive        *bool            `json:"is_active"`
}

type PackageSpecItemFilter struct {
	PackageSpecID uint
	ItemID        uint
}

type CreatePackageSpecItemRequest struct {
	PackageSpecID     uint `json:"package_spec_id" binding:"required"`
	ProductionOrderID uint `json:"production_order_id" binding:"required"`
	ItemID            uint `json:"item_id" binding:"required"`
	Quantity          int  `json:"quantity" binding:"required,gte=1"`
}

type UpdatePackageSpecItemRequest struct {
	PackageSpecID *uint `json:"package_spec_id" binding:"omitempty,gte=1"`
	ItemID        *uint `json:"item_id" binding:"omitempty,gte=1"`
	Quantity      *int  `json:"quantity" binding:"omitempty,gte=1"`
}
