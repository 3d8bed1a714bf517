package repository

import (
	"context"
	"errors"
	"strings"

	"campusconnect/internal/models"

	"gorm.io/gorm"
)

var ErrWalletNotProvisioned = errors.New("user has no custodial wallet")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.WalletAddress != nil {
		addr := strings.ToLower(*u.WalletAddress)
		u.WalletAddress = &addr
	}
	return r.db.WithContext(ctx).Create(u).Error
}

// Get returns nil without error when the user does not exist.
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByWallet(ctx context.Context, address string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("wallet_address = ?", strings.ToLower(address)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Update applies a partial update; keys are column names.
func (r *UserRepository) Update(ctx context.Context, id string, updates map[string]interface{}) (*models.User, error) {
	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}
	return r.Get(ctx, id)
}

func (r *UserRepository) SetCustodialWallet(ctx context.Context, id, walletID, address string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"custodial_wallet_id": walletID,
		"custodial_address":   address,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CustodialAddress returns the address the orchestrator signs payments with.
func (r *UserRepository) CustodialAddress(ctx context.Context, userID string) (string, error) {
	var u models.User
	err := r.db.WithContext(ctx).Select("id", "custodial_address").Where("id = ?", userID).First(&u).Error
	if err != nil {
		return "", err
	}
	if u.CustodialAddress == nil || *u.CustodialAddress == "" {
		return "", ErrWalletNotProvisioned
	}
	return *u.CustodialAddress, nil
}
