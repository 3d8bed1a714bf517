package service

import (
	"context"
	"errors"
	"strings"

	"campusconnect/config"
	"campusconnect/internal/auth"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidWallet = errors.New("invalid wallet address")

type AuthService struct {
	cfg      *config.JWTConfig
	userRepo *repository.UserRepository
	nonces   auth.NonceStore
}

func NewAuthService(cfg *config.JWTConfig, userRepo *repository.UserRepository, nonces auth.NonceStore) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo, nonces: nonces}
}

// RequestNonce issues a nonce for address and returns the message to sign.
func (s *AuthService) RequestNonce(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidWallet
	}
	n, err := s.nonces.Issue(ctx, address)
	if err != nil {
		return "", err
	}
	return auth.LoginMessage(n), nil
}

// LoginWithWallet verifies the signed nonce and returns the user, an access
// token and whether the user was created by this login.
func (s *AuthService) LoginWithWallet(ctx context.Context, address, signature string) (*models.User, string, bool, error) {
	if !common.IsHexAddress(address) {
		return nil, "", false, ErrInvalidWallet
	}
	n, err := s.nonces.Consume(ctx, address)
	if err != nil {
		return nil, "", false, err
	}
	if err := auth.VerifySignature(address, auth.LoginMessage(n), signature); err != nil {
		return nil, "", false, err
	}

	isNew := false
	u, err := s.userRepo.GetByWallet(ctx, address)
	if err != nil {
		return nil, "", false, err
	}
	if u == nil {
		addr := strings.ToLower(address)
		u = &models.User{WalletAddress: &addr}
		if err := s.userRepo.Create(ctx, u); err != nil {
			return nil, "", false, err
		}
		isNew = true
	}
	token, err := auth.GenerateAccessToken(s.cfg, u.ID, *u.WalletAddress)
	if err != nil {
		return nil, "", false, err
	}
	return u, token, isNew, nil
}
