package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"campusconnect/internal/domain"
	"campusconnect/internal/metrics"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/pkg/custody"
	"campusconnect/pkg/evm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	ErrPaymentFailed    = errors.New("payment failed")
	ErrSideEffectFailed = errors.New("payment completed but the update could not be applied")
	ErrInvalidPurpose   = errors.New("invalid payment purpose")
	ErrInvalidPostType  = errors.New("post type must be group or resource")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrUserNotFound     = errors.New("user not found")
)

// PaymentStores are the tables the orchestrator reads and writes.
type PaymentStores struct {
	Payments  *repository.PaymentRepository
	Users     *repository.UserRepository
	Groups    *repository.GroupRepository
	Resources *repository.ResourceRepository
}

// PaymentChain describes how transfers are built, signed and submitted.
// A nil Backend means transfers are signed but never broadcast.
type PaymentChain struct {
	Token               *evm.Token
	Backend             evm.Backend
	Signer              custody.Signer
	ChainID             *big.Int
	Treasury            common.Address
	RequireConfirmation bool
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
}

type PaymentRequest struct {
	UserID   string
	Amount   decimal.Decimal
	Purpose  string
	Metadata map[string]interface{}
}

type PaymentResult struct {
	Success         bool   `json:"success"`
	PaymentID       string `json:"payment_id"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Status          string `json:"status"`
}

type PaymentService struct {
	stores   PaymentStores
	chain    PaymentChain
	notifier *NotificationService
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewPaymentService(stores PaymentStores, chain PaymentChain, notifier *NotificationService, m *metrics.Metrics, log *zap.Logger) *PaymentService {
	if chain.PollInterval <= 0 {
		chain.PollInterval = 2 * time.Second
	}
	if chain.ConfirmationTimeout <= 0 {
		chain.ConfirmationTimeout = 2 * time.Minute
	}
	return &PaymentService{
		stores:   stores,
		chain:    chain,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Prices returns the USDC price of every purpose.
func (s *PaymentService) Prices() map[string]string {
	out := make(map[string]string, len(domain.Prices))
	for purpose, price := range domain.Prices {
		out[purpose] = price.StringFixed(2)
	}
	return out
}

// ProcessPayment records a pending payment, submits the USDC transfer from the
// user's custodial wallet to the treasury and marks the payment completed.
// Any failure after the insert leaves the row pending.
func (s *PaymentService) ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if !domain.ValidPurpose(req.Purpose) {
		return nil, ErrInvalidPurpose
	}
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(domain.USDCDecimals)) {
		return nil, ErrInvalidAmount
	}

	p := &models.Payment{
		UserID:   req.UserID,
		Amount:   req.Amount,
		Purpose:  req.Purpose,
		Metadata: datatypes.JSONMap(req.Metadata),
	}
	if err := s.stores.Payments.Create(ctx, p); err != nil {
		return s.fail(req, nil, "", err)
	}
	log := s.log.With(zap.String("payment_id", p.ID), zap.String("user_id", req.UserID), zap.String("purpose", req.Purpose))

	hash, err := s.transfer(ctx, req.UserID, req.Amount)
	if err != nil {
		log.Error("transfer not submitted", zap.Error(err))
		return s.fail(req, p, "", err)
	}
	txHash := hash.Hex()
	log = log.With(zap.String("tx_hash", txHash))

	status := domain.PaymentCompleted
	if s.chain.RequireConfirmation {
		status, err = s.confirm(ctx, hash)
		if err != nil {
			log.Warn("confirmation unknown, payment left pending", zap.Error(err))
			return s.fail(req, p, txHash, err)
		}
	}

	if err := s.stores.Payments.UpdateStatus(ctx, p.ID, status, &txHash); err != nil {
		log.Error("payment status not recorded", zap.Error(err))
		return s.fail(req, p, txHash, err)
	}
	p.Status = status
	p.TransactionHash = &txHash

	if status == domain.PaymentFailed {
		log.Warn("transfer reverted")
		s.metrics.PaymentOutcome(req.Purpose, metrics.OutcomeFailed)
		s.notifyFailure(req.UserID, evm.ErrReverted)
		return &PaymentResult{PaymentID: p.ID, TransactionHash: txHash, Status: status}, fmt.Errorf("%w: %w", ErrPaymentFailed, evm.ErrReverted)
	}

	log.Info("payment completed")
	s.metrics.PaymentOutcome(req.Purpose, metrics.OutcomeCompleted)
	s.metrics.PaymentAmount(req.Purpose, req.Amount.InexactFloat64())
	if s.notifier != nil {
		s.notifier.NotifyPaymentCompleted(ctx, p)
	}
	return &PaymentResult{Success: true, PaymentID: p.ID, TransactionHash: txHash, Status: status}, nil
}

func (s *PaymentService) fail(req PaymentRequest, p *models.Payment, txHash string, cause error) (*PaymentResult, error) {
	s.notifyFailure(req.UserID, cause)
	if p == nil {
		s.metrics.PaymentOutcome(req.Purpose, metrics.OutcomeNotRecorded)
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, cause)
	}
	s.metrics.PaymentOutcome(req.Purpose, metrics.OutcomePending)
	return &PaymentResult{PaymentID: p.ID, TransactionHash: txHash, Status: domain.PaymentPending}, fmt.Errorf("%w: %w", ErrPaymentFailed, cause)
}

func (s *PaymentService) notifyFailure(userID string, cause error) {
	if s.notifier == nil {
		return
	}
	msg := "Payment failed. Please try again."
	if errors.Is(cause, repository.ErrWalletNotProvisioned) {
		msg = "Create a wallet before paying."
	}
	s.notifier.NotifyPaymentFailed(userID, msg)
}

func (s *PaymentService) transfer(ctx context.Context, userID string, amount decimal.Decimal) (common.Hash, error) {
	from, err := s.stores.Users.CustodialAddress(ctx, userID)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := s.chain.Token.BuildTransfer(ctx, common.HexToAddress(from), s.chain.Treasury, amount)
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := s.chain.Signer.SignTransaction(ctx, from, tx, s.chain.ChainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if s.chain.Backend != nil {
		if err := s.chain.Backend.SendTransaction(ctx, signed); err != nil {
			return common.Hash{}, fmt.Errorf("broadcast: %w", err)
		}
	}
	return signed.Hash(), nil
}

func (s *PaymentService) confirm(ctx context.Context, hash common.Hash) (string, error) {
	if s.chain.Backend == nil {
		return domain.PaymentPending, errors.New("no chain client configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.chain.ConfirmationTimeout)
	defer cancel()
	_, err := evm.WaitMined(ctx, s.chain.Backend, hash, s.chain.PollInterval)
	switch {
	case errors.Is(err, evm.ErrReverted):
		return domain.PaymentFailed, nil
	case err != nil:
		return domain.PaymentPending, err
	}
	return domain.PaymentCompleted, nil
}

// sideEffectFailed reports a completed payment whose entity update failed.
func (s *PaymentService) sideEffectFailed(res *PaymentResult, purpose string, err error) (*PaymentResult, error) {
	s.log.Error("post-payment update failed",
		zap.String("payment_id", res.PaymentID), zap.String("purpose", purpose), zap.Error(err))
	s.metrics.PaymentOutcome(purpose, metrics.OutcomeSideEffect)
	return res, fmt.Errorf("%w: %w", ErrSideEffectFailed, err)
}

// FeaturePost pays for featuring a group or resource for seven days.
func (s *PaymentService) FeaturePost(ctx context.Context, userID, postID, postType string) (*PaymentResult, error) {
	if postType != domain.PostTypeGroup && postType != domain.PostTypeResource {
		return nil, ErrInvalidPostType
	}
	res, err := s.ProcessPayment(ctx, PaymentRequest{
		UserID:  userID,
		Amount:  domain.Prices[domain.PurposeFeaturedPost],
		Purpose: domain.PurposeFeaturedPost,
		Metadata: map[string]interface{}{
			"postId":        postID,
			"postType":      postType,
			"featuredUntil": s.now().Add(domain.Days(domain.FeaturedDays)).UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return res, err
	}
	if postType == domain.PostTypeGroup {
		err = s.stores.Groups.Feature(ctx, postID, domain.FeaturedDays)
	} else {
		err = s.stores.Resources.Feature(ctx, postID, domain.FeaturedDays)
	}
	if err != nil {
		return s.sideEffectFailed(res, domain.PurposeFeaturedPost, err)
	}
	return res, nil
}

// BumpResource pays for moving a resource back to the top of the listing.
func (s *PaymentService) BumpResource(ctx context.Context, userID, resourceID string) (*PaymentResult, error) {
	res, err := s.ProcessPayment(ctx, PaymentRequest{
		UserID:  userID,
		Amount:  domain.Prices[domain.PurposeResourceBump],
		Purpose: domain.PurposeResourceBump,
		Metadata: map[string]interface{}{
			"resourceId": resourceID,
			"bumpedAt":   s.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return res, err
	}
	if err := s.stores.Resources.Bump(ctx, resourceID); err != nil {
		return s.sideEffectFailed(res, domain.PurposeResourceBump, err)
	}
	return res, nil
}

func (s *PaymentService) PurchaseAdvancedFilters(ctx context.Context, userID string) (*PaymentResult, error) {
	return s.ProcessPayment(ctx, PaymentRequest{
		UserID:  userID,
		Amount:  domain.Prices[domain.PurposeAdvancedFilters],
		Purpose: domain.PurposeAdvancedFilters,
		Metadata: map[string]interface{}{
			"validUntil": s.now().Add(domain.Days(domain.EntitlementDays)).UTC().Format(time.RFC3339),
		},
	})
}

func (s *PaymentService) CreatePremiumGroup(ctx context.Context, userID, groupID string) (*PaymentResult, error) {
	return s.ProcessPayment(ctx, PaymentRequest{
		UserID:  userID,
		Amount:  domain.Prices[domain.PurposePremiumGroup],
		Purpose: domain.PurposePremiumGroup,
		Metadata: map[string]interface{}{
			"groupId":         groupID,
			"premiumFeatures": domain.PremiumGroupFeatures,
			"validUntil":      s.now().Add(domain.Days(domain.EntitlementDays)).UTC().Format(time.RFC3339),
		},
	})
}

// CreateWallet provisions a custodial wallet for the user. A user that already
// has one gets it back unchanged.
func (s *PaymentService) CreateWallet(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.stores.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if u.CustodialAddress != nil && *u.CustodialAddress != "" {
		return u, nil
	}
	w, err := s.chain.Signer.CreateWallet(ctx, "campusconnect-"+userID)
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	if err := s.stores.Users.SetCustodialWallet(ctx, userID, w.ID, w.Address); err != nil {
		return nil, err
	}
	s.log.Info("custodial wallet created", zap.String("user_id", userID), zap.String("address", w.Address))
	return s.stores.Users.Get(ctx, userID)
}

func (s *PaymentService) GetPaymentHistory(ctx context.Context, userID string) ([]models.Payment, error) {
	return s.stores.Payments.ListByUser(ctx, userID)
}

func (s *PaymentService) GetPaymentStatus(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.stores.Payments.Get(ctx, paymentID)
}
