package models

import (
	"errors"
	"time"

	"campusconnect/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrIllegalTransition = errors.New("payment status can only move from pending")

type Payment struct {
	ID              string            `gorm:"primaryKey;size:36" json:"id"`
	UserID          string            `gorm:"size:36;not null;index" json:"user_id"`
	Amount          decimal.Decimal   `gorm:"type:numeric(18,6);not null" json:"amount"`
	Currency        string            `gorm:"size:10;not null" json:"currency"`
	Purpose         string            `gorm:"size:30;not null;index" json:"purpose"`
	Status          string            `gorm:"size:20;not null;index" json:"status"` // pending, completed, failed
	TransactionHash *string           `gorm:"size:66" json:"transaction_hash"`
	Metadata        datatypes.JSONMap `json:"metadata"`
	CreatedAt       time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// CanTransition reports whether the payment may move to status to.
func (p *Payment) CanTransition(to string) error {
	if p.Status != domain.PaymentPending {
		return ErrIllegalTransition
	}
	if to != domain.PaymentCompleted && to != domain.PaymentFailed {
		return ErrIllegalTransition
	}
	return nil
}
