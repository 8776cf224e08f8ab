package models

import (
	"time"
)

type AuthProvider string

const (
	AuthProviderLocal     AuthProvider = "local"
	AuthProviderFederated AuthProvider = "federated"
)

type User struct {
	ID                 uint64       `gorm:"primarykey" json:"id"`
	Name               string       `gorm:"type:varchar(100)" json:"name"`
	Email              string       `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash       *string      `gorm:"type:varchar(255)" json:"-"`
	FederatedSubjectID *string      `gorm:"type:varchar(255)" json:"-"`
	ProfilePictureURL  *string      `gorm:"type:varchar(500)" json:"profile_pic,omitempty"`
	AuthProvider       AuthProvider `gorm:"type:varchar(20);not null" json:"auth_provider"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}
