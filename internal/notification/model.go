package notification

import (
	"github.com/millworks/backoffice/internal/database"
)

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// EmailNotification is an internal recipient of workflow emails. Only Active
// records receive them.
type EmailNotification struct {
	database.BaseModel
	Email    string  `gorm:"type:varchar(255);column:email;not null;uniqueIndex" json:"email"`
	Name     string  `gorm:"type:varchar(150);column:name;not null" json:"name"`
	Status   Status  `gorm:"type:varchar(10);column:status;not null" json:"status"`
	Category *string `gorm:"type:varchar(100);column:category" json:"category"`
}

func (e *EmailNotification) TableName() string {
	return "email_notifications"
}

func Models() []any {
	return []any{&EmailNotification{}}
}

type CreateRequest struct {
	Email    string  `json:"email" binding:"required,email,max=255"`
	Name     string  `json:"name" binding:"required,max=150"`
	Status   Status  `json:"status" binding:"omitempty,oneof=Active Inactive"`
	Category *string `json:"category" binding:"omitempty,max=100"`
}

type UpdateRequest struct {
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
	Name     *string `json:"name" binding:"omitempty,min=1,max=150"`
	Status   *Status `json:"status" binding:"omitempty,oneof=Active Inactive"`
	Category *string `json:"category" binding:"omitempty,max=100"`
}

type Filter struct {
	Status Status
	Search string
}
