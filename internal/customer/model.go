package customer

import (
	"time"

	"gorm.io/gorm"

	"github.com/millworks/backoffice/internal/database"
)

type AddressType string

const (
	AddressTypeBilling  AddressType = "billing"
	AddressTypeShipping AddressType = "shipping"
)

// Customer is owned by the CRM side of the system; this service only reads it to
// validate references.
type Customer struct {
	database.BaseModel
	Name  string `gorm:"type:varchar(255);column:name;not null" json:"name"`
	Email string `gorm:"type:varchar(255);column:email" json:"email"`
}

func (c *Customer) TableName() string {
	return "customers"
}

type Address struct {
	database.BaseModel
	CustomerID   uint        `gorm:"column:customer_id;not null;index" json:"customer_id"`
	AddressType  AddressType `gorm:"type:varchar(20);column:address_type;not null" json:"address_type"`
	AddressLine1 string      `gorm:"type:varchar(255);column:address_line1;not null" json:"address_line1"`
	AddressLine2 *string     `gorm:"type:varchar(255);column:address_line2" json:"address_line2"`
	City         string      `gorm:"type:varchar(100);column:city;not null" json:"city"`
	State        string      `gorm:"type:varchar(100);column:state" json:"state"`
	PostalCode   string      `gorm:"type:varchar(20);column:postal_code" json:"postal_code"`
	Country      string      `gorm:"type:varchar(100);column:country;not null" json:"country"`
	IsPrimary    bool        `gorm:"column:is_primary;not null;default:false" json:"is_primary"`
}

func (a *Address) TableName() string {
	return "customers_addresses"
}

// File is the metadata row of an object stored through the uploads driver.
// DeletedAt set means the file is archived; archived files can be restored or
// permanently deleted.
type File struct {
	database.BaseModel
	CustomerID  uint           `gorm:"column:customer_id;not null;index" json:"customer_id"`
	FileName    string         `gorm:"type:varchar(255);column:file_name;not null" json:"file_name"`
	FileKey     string         `gorm:"type:varchar(512);column:file_key;not null" json:"file_key"`
	MimeType    string         `gorm:"type:varchar(127);column:mime_type;not null" json:"mime_type"`
	Size        int64          `gorm:"column:size;not null;default:0" json:"size"`
	Checksum    string         `gorm:"type:char(64);column:checksum;index" json:"checksum,omitempty"`
	UploadedBy  string         `gorm:"type:varchar(255);column:uploaded_by" json:"uploaded_by"`
	Description *string        `gorm:"type:text;column:description" json:"description"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index" json:"deleted_at"`
}

func (f *File) TableName() string {
	return "customer_files"
}

// Archived reports whether the file has been soft-deleted.
func (f *File) Archived() bool {
	return f.DeletedAt.Valid
}

// Models lists the tables owned by this package, in migration order.
func Models() []any {
	return []any{&Customer{}, &Address{}, &File{}}
}

// CreateAddressRequest is the body of POST /customers-addresses
type CreateAddressRequest struct {
	CustomerID   uint        `json:"customer_id" binding:"required"`
	AddressType  AddressType `json:"address_type" binding:"required,oneof=billing shipping"`
	AddressLine1 string      `json:"address_line1" binding:"required,max=255"`
	AddressLine2 *string     `json:"address_line2" binding:"omitempty,max=255"`
	City         string      `json:"city" binding:"required,max=100"`
	State        string      `json:"state" binding:"max=100"`
	PostalCode   string      `json:"postal_code" binding:"max=20"`
	Country      string      `json:"country" binding:"required,max=100"`
	IsPrimary    bool        `json:"is_primary"`
}

// UpdateAddressRequest is a partial update; nil fields are left unchanged.
type UpdateAddressRequest struct {
	AddressType  *AddressType `json:"address_type" binding:"omitempty,oneof=billing shipping"`
	AddressLine1 *string      `json:"address_line1" binding:"omitempty,min=1,max=255"`
	AddressLine2 *string      `json:"address_line2" binding:"omitempty,max=255"`
	City         *string      `json:"city" binding:"omitempty,min=1,max=100"`
	State        *string      `json:"state" binding:"omitempty,max=100"`
	PostalCode   *string      `json:"postal_code" binding:"omitempty,max=20"`
	Country      *string      `json:"country" binding:"omitempty,min=1,max=100"`
	IsPrimary    *bool        `json:"is_primary"`
}

type AddressFilter struct {
	CustomerID  uint
	AddressType string
}

// CreateFileRequest registers an object that was already stored through /uploads.
type CreateFileRequest struct {
	CustomerID  uint    `json:"customer_id" binding:"required"`
	FileName    string  `json:"file_name" binding:"required,max=255"`
	FileKey     string  `json:"file_key" binding:"required,max=512"`
	MimeType    string  `json:"mime_type" binding:"required,max=127"`
	Size        int64   `json:"size" binding:"gte=0"`
	Checksum    string  `json:"checksum" binding:"omitempty,len=64,hexadecimal"`
	UploadedBy  string  `json:"uploaded_by" binding:"max=255"`
	Description *string `json:"description"`
}

type UpdateFileRequest struct {
	FileName    *string `json:"file_name" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
}

type FileFilter struct {
	CustomerID   uint
	MimeType     string
	Search       string
	ShowArchived bool
	OnlyArchived bool
}

// DownloadURL is the response of GET /customer-files/:id/download-url
type DownloadURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
