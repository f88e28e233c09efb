package production

import (
	"github.com/millworks/backoffice/internal/catalog"
	"github.com/millworks/backoffice/internal/database"
)

// BodyColor is the body color of one production order item. The yarn is optional.
type BodyColor struct {
	database.BaseModel
	ProductionOrderID uint    `gorm:"column:production_order_id;not null;index" json:"production_order_id"`
	ItemID            uint    `gorm:"column:item_id;not null;index" json:"item_id"`
	BodyColor         string  `gorm:"type:varchar(100);column:body_color;not null" json:"body_color"`
	YarnID            *uint   `gorm:"column:yarn_id" json:"yarn_id"`
	Notes             *string `gorm:"type:text;column:notes" json:"notes"`

	Yarn *catalog.YarnSummary `gorm:"-" json:"yarn,omitempty"`
}

func (b *BodyColor) TableName() string {
	return "production_orders_body_colors"
}

type KnitColor struct {
	database.BaseModel
	ProductionOrderID uint    `gorm:"column:production_order_id;not null;index" json:"production_order_id"`
	ItemID            uint    `gorm:"column:item_id;not null;index" json:"item_id"`
	YarnID            uint    `gorm:"column:yarn_id;not null" json:"yarn_id"`
	Color             string  `gorm:"type:varchar(100);column:color;not null" json:"color"`
	Quantity          int     `gorm:"column:quantity;not null" json:"quantity"`
	Notes             *string `gorm:"type:text;column:notes" json:"notes"`

	Yarn *catalog.YarnSummary `gorm:"-" json:"yarn,omitempty"`
}

func (k *KnitColor) TableName() string {
	return "production_orders_knit_colors"
}

// Packaging records how many packages of a kind an order item ships in.
type Packaging struct {
	database.BaseModel
	ProductionOrderID uint    `gorm:"column:production_order_id;not null;index" json:"production_order_id"`
	ItemID            uint    `gorm:"column:item_id;not null;index" json:"item_id"`
	PackagingID       uint    `gorm:"column:packaging_id;not null" json:"packaging_id"`
	Quantity          int     `gorm:"column:quantity;not null" json:"quantity"`
	Notes             *string `gorm:"type:text;column:notes" json:"notes"`

	Packaging *catalog.PackagingSummary `gorm:"-" json:"packaging,omitempty"`
}

func (p *Packaging) TableName() string {
	return "production_orders_packaging"
}

func Models() []any {
	return []any{&BodyColor{}, &KnitColor{}, &Packaging{}}
}

// LineFilter narrows the line items of production orders.
type LineFilter struct {
	ProductionOrderID uint
	ItemID            uint
}

type CreateBodyColorRequest struct {
	ProductionOrderID uint    `json:"production_order_id" binding:"required"`
	ItemID            uint    `json:"item_id" binding:"required"`
	BodyColor         string  `json:"body_color" binding:"required,max=100"`
	YarnID            *uint   `json:"yarn_id"`
	Notes             *string `json:"notes"`
}

type UpdateBodyColorRequest struct {
	BodyColor *string `json:"body_color" binding:"omitempty,min=1,max=100"`
	YarnID    *uint   `json:"yarn_id"`
	Notes     *string `json:"notes"`
}

type CreateKnitColorRequest struct {
	ProductionOrderID uint    `json:"production_order_id" binding:"required"`
	ItemID            uint    `json:"item_id" binding:"required"`
	YarnID            uint    `json:"yarn_id" binding:"required"`
	Color             string  `json:"color" binding:"required,max=100"`
	Quantity          int     `json:"quantity" binding:"gte=0"`
	Notes             *string `json:"notes"`
}

type UpdateKnitColorRequest struct {
	YarnID   *uint   `json:"yarn_id" binding:"omitempty,gte=1"`
	Color    *string `json:"color" binding:"omitempty,min=1,max=100"`
	Quantity *int    `json:"quantity" binding:"omitempty,gte=0"`
	Notes    *string `json:"notes"`
}

type CreatePackagingRequest struct {
	ProductionOrderID uint    `json:"production_order_id" binding:"required"`
	ItemID            uint    `json:"item_id" binding:"required"`
	PackagingID       uint    `json:"packaging_id" binding:"required"`
	Quantity          int     `json:"quantity" binding:"required,gte=1"`
	Notes             *string `json:"notes"`
}

type UpdatePackagingRequest struct {
	PackagingID *uint   `json:"packaging_id" binding:"omitempty,gte=1"`
	Quantity    *int    `json:"quantity" binding:"omitempty,gte=1"`
	Notes       *string `json:"notes"`
}
