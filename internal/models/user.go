package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID                string                      `gorm:"primaryKey;size:36" json:"id"`
	DisplayName       string                      `gorm:"size:128;not null" json:"display_name"`
	Major             string                      `gorm:"size:128" json:"major"`
	Interests         datatypes.JSONSlice[string] `json:"interests"`
	Bio               string                      `gorm:"type:text" json:"bio"`
	Connections       datatypes.JSONSlice[string] `json:"connections"`
	Avatar            *string                     `gorm:"size:512" json:"avatar"`
	WalletAddress     *string                     `gorm:"uniqueIndex;size:42" json:"wallet_address"` // login wallet, lowercase hex
	CustodialWalletID *string                     `gorm:"size:64" json:"-"`
	CustodialAddress  *string                     `gorm:"size:42" json:"custodial_address"` // signs platform payments
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}
