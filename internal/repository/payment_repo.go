package repository

import (
	"context"
	"errors"

	"campusconnect/internal/domain"
	"campusconnect/internal/models"

	"gorm.io/gorm"
)

var ErrPaymentNotPending = errors.New("payment is not pending")

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new pending payment.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	p.Status = domain.PaymentPending
	if p.Currency == "" {
		p.Currency = domain.Currency
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus moves a pending payment to a terminal status. Rows that already
// left pending are not touched and ErrPaymentNotPending is returned.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id, status string, txHash *string) error {
	if err := (&models.Payment{Status: domain.PaymentPending}).CanTransition(status); err != nil {
		return err
	}
	updates := map[string]interface{}{"status": status}
	if txHash != nil {
		updates["transaction_hash"] = *txHash
	}
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaymentNotPending
	}
	return nil
}

// ListByUser returns the user's payments newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	var list []models.Payment
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error
	return list, err
}
