package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"campusconnect/internal/domain"
	"campusconnect/internal/metrics"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/ws"
	"campusconnect/pkg/custody"
	"campusconnect/pkg/evm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	testUSDC     = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	testTreasury = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

type paymentFixture struct {
	svc    *PaymentService
	stores PaymentStores
	hub    *ws.Hub
	db     *gorm.DB
	reg    *prometheus.Registry
}

// newPaymentFixture wires the orchestrator to SQLite and a stub signer. A nil
// backend signs without broadcasting.
func newPaymentFixture(t *testing.T, backend *chainStub, confirm bool) *paymentFixture {
	t.Helper()
	db := newTestDB(t)
	hub := ws.NewHub()
	stores := PaymentStores{
		Payments:  repository.NewPaymentRepository(db),
		Users:     repository.NewUserRepository(db),
		Groups:    repository.NewGroupRepository(db),
		Resources: repository.NewResourceRepository(db),
	}
	chain := PaymentChain{
		Signer:              custody.NewStubSigner(),
		ChainID:             big.NewInt(8453),
		Treasury:            testTreasury,
		RequireConfirmation: confirm,
		ConfirmationTimeout: 200 * time.Millisecond,
		PollInterval:        5 * time.Millisecond,
	}
	if backend != nil {
		chain.Backend = backend
		chain.Token = evm.NewToken(backend, testUSDC, domain.USDCDecimals)
	} else {
		chain.Token = evm.NewToken(nil, testUSDC, domain.USDCDecimals)
	}
	reg := prometheus.NewRegistry()
	svc := NewPaymentService(stores, chain, newNotifier(db, hub), metrics.New(reg), zap.NewNop())
	return &paymentFixture{svc: svc, stores: stores, hub: hub, db: db, reg: reg}
}

func (f *paymentFixture) user(t *testing.T, withWallet bool) *models.User {
	t.Helper()
	u := &models.User{DisplayName: "Ada"}
	require.NoError(t, f.stores.Users.Create(context.Background(), u))
	if withWallet {
		var err error
		u, err = f.svc.CreateWallet(context.Background(), u.ID)
		require.NoError(t, err)
	}
	return u
}

func (f *paymentFixture) payment(t *testing.T, id string) *models.Payment {
	t.Helper()
	p, err := f.stores.Payments.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestProcessPaymentCompletesOnSubmission(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	u := f.user(t, true)
	client := f.hub.Subscribe(u.ID, 4)

	res, err := f.svc.ProcessPayment(context.Background(), PaymentRequest{
		UserID:   u.ID,
		Amount:   decimal.RequireFromString("0.50"),
		Purpose:  domain.PurposeFeaturedPost,
		Metadata: map[string]interface{}{"postId": "g1"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.PaymentCompleted, res.Status)
	assert.Len(t, res.TransactionHash, 66)

	p := f.payment(t, res.PaymentID)
	assert.Equal(t, domain.PaymentCompleted, p.Status)
	require.NotNil(t, p.TransactionHash)
	assert.Equal(t, res.TransactionHash, *p.TransactionHash)
	assert.Equal(t, "USDC", p.Currency)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, "g1", p.Metadata["postId"])

	select {
	case msg := <-client.Send:
		assert.Contains(t, string(msg), "Payment successful!")
	default:
		t.Fatal("expected a toast")
	}

	var stored int64
	require.NoError(t, f.db.Model(&models.Notification{}).Where("user_id = ?", u.ID).Count(&stored).Error)
	assert.Equal(t, int64(1), stored)
}

func TestProcessPaymentBroadcasts(t *testing.T) {
	chain := &chainStub{}
	f := newPaymentFixture(t, chain, false)
	u := f.user(t, true)

	res, err := f.svc.ProcessPayment(context.Background(), PaymentRequest{
		UserID: u.ID, Amount: decimal.RequireFromString("0.25"), Purpose: domain.PurposeResourceBump,
	})
	require.NoError(t, err)
	require.Len(t, chain.sent, 1)

	tx := chain.sent[0]
	assert.Equal(t, res.TransactionHash, tx.Hash().Hex())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, testUSDC, *tx.To())
	assert.Equal(t, evm.TransferSelector, tx.Data()[:4])
	assert.Equal(t, int64(250000), new(big.Int).SetBytes(tx.Data()[36:68]).Int64())

	sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(8453)), tx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(*u.CustodialAddress), sender)
}

func TestProcessPaymentWithoutWalletLeavesRowPending(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	u := f.user(t, false)
	client := f.hub.Subscribe(u.ID, 4)

	res, err := f.svc.ProcessPayment(context.Background(), PaymentRequest{
		UserID: u.ID, Amount: decimal.RequireFromString("1.00"), Purpose: domain.PurposeAdvancedFilters,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.ErrorIs(t, err, repository.ErrWalletNotProvisioned)
	require.NotNil(t, res)
	assert.False(t, res.Success)

	p := f.payment(t, res.PaymentID)
	assert.Equal(t, domain.PaymentPending, p.Status)
	assert.Nil(t, p.TransactionHash)

	select {
	case msg := <-client.Send:
		assert.Contains(t, string(msg), "Payment failed")
	default:
		t.Fatal("expected a failure toast")
	}
}

func TestProcessPaymentBroadcastFailureLeavesRowPending(t *testing.T) {
	chain := &chainStub{sendErr: errors.New("connection refused")}
	f := newPaymentFixture(t, chain, false)
	u := f.user(t, true)

	res, err := f.svc.ProcessPayment(context.Background(), PaymentRequest{
		UserID: u.ID, Amount: decimal.RequireFromString("0.50"), Purpose: domain.PurposeFeaturedPost,
	})
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.ErrorIs(t, err, chain.sendErr)
	assert.Equal(t, domain.PaymentPending, f.payment(t, res.PaymentID).Status)
}

func TestProcessPaymentValidatesInput(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	u := f.user(t, true)
	ctx := context.Background()

	_, err := f.svc.ProcessPayment(ctx, PaymentRequest{UserID: u.ID, Amount: decimal.NewFromInt(1), Purpose: "tip"})
	assert.ErrorIs(t, err, ErrInvalidPurpose)
	_, err = f.svc.ProcessPayment(ctx, PaymentRequest{UserID: u.ID, Amount: decimal.Zero, Purpose: domain.PurposeFeaturedPost})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.svc.ProcessPayment(ctx, PaymentRequest{UserID: u.ID, Amount: decimal.RequireFromString("0.0000001"), Purpose: domain.PurposeFeaturedPost})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	for _, amount := range []string{"0.000001", "0.500000000"} {
		res, err := f.svc.ProcessPayment(ctx, PaymentRequest{UserID: u.ID, Amount: decimal.RequireFromString(amount), Purpose: domain.PurposeFeaturedPost})
		require.NoError(t, err, amount)
		assert.Equal(t, domain.PaymentCompleted, res.Status)
		require.NoError(t, f.db.Delete(&models.Payment{}, "id = ?", res.PaymentID).Error)
	}

	history, err := f.svc.GetPaymentHistory(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestProcessPaymentInsertFailureIsNotCountedPending(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	u := f.user(t, true)
	require.NoError(t, f.db.Migrator().DropTable(&models.Payment{}))

	res, err := f.svc.ProcessPayment(context.Background(), PaymentRequest{UserID: u.ID, Amount: decimal.RequireFromString("0.50"), Purpose: domain.PurposeFeaturedPost})
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Nil(t, res)

	expected := `
# HELP campusconnect_payments_total Payments processed by purpose and outcome.
# TYPE campusconnect_payments_total counter
campusconnect_payments_total{outcome="not_recorded",purpose="featured_post"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "campusconnect_payments_total"))
}

func TestProcessPaymentConfirmation(t *testing.T) {
	tests := []struct {
		name     string
		receipts []*types.Receipt
		status   string
		wantErr  error
	}{
		{"mined", []*types.Receipt{{Status: types.ReceiptStatusSuccessful}}, domain.PaymentCompleted, nil},
		{"reverted", []*types.Receipt{{Status: types.ReceiptStatusFailed}}, domain.PaymentFailed, evm.ErrReverted},
		{"timeout", nil, domain.PaymentPending, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t, &chainStub{receipts: tt.receipts}, true)
			u := f.user(t, true)

			res, err := f.svc.ProcessPayment(context.Background(), PaymentRequest{
				UserID: u.ID, Amount: decimal.RequireFromString("2.00"), Purpose: domain.PurposePremiumGroup,
			})
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.True(t, res.Success)
			} else {
				assert.ErrorIs(t, err, ErrPaymentFailed)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, res.Success)
			}
			assert.Equal(t, tt.status, f.payment(t, res.PaymentID).Status)
		})
	}
}

func TestConfirmationWithoutChainClientLeavesPending(t *testing.T) {
	f := newPaymentFixture(t, nil, true)
	u := f.user(t, true)

	res, err := f.svc.ProcessPayment(context.Background(), PaymentRequest{
		UserID: u.ID, Amount: decimal.RequireFromString("0.50"), Purpose: domain.PurposeFeaturedPost,
	})
	assert.ErrorIs(t, err, ErrPaymentFailed)
	p := f.payment(t, res.PaymentID)
	assert.Equal(t, domain.PaymentPending, p.Status)
}

func TestFeaturePostGroup(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	u := f.user(t, true)
	ctx := context.Background()
	g := &models.Group{Name: "Distributed Systems", PrivacyLevel: domain.PrivacyPublic, CreatedBy: u.ID}
	require.NoError(t, f.stores.Groups.Create(ctx, g))

	res, err := f.svc.FeaturePost(ctx, u.ID, g.ID, domain.PostTypeGroup)
	require.NoError(t, err)
	assert.True(t, res.Success)

	got, err := f.stores.Groups.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, got.Featured)
	require.NotNil(t, got.FeaturedUntil)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), *got.FeaturedUntil, time.Minute)

	p := f.payment(t, res.PaymentID)
	assert.True(t, p.Amount.Equal(domain.Prices[domain.PurposeFeaturedPost]))
	assert.Equal(t, g.ID, p.Metadata["postId"])
	assert.Equal(t, domain.PostTypeGroup, p.Metadata["postType"])
	assert.NotEmpty(t, p.Metadata["featuredUntil"])
}

func TestFeaturePostSideEffectFailureKeepsPaymentCompleted(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	u := f.user(t, true)

	res, err := f.svc.FeaturePost(context.Background(), u.ID, "missing-resource", domain.PostTypeResource)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSideEffectFailed)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NotErrorIs(t, err, ErrPaymentFailed)
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, domain.PaymentCompleted, f.payment(t, res.PaymentID).Status)
}

func TestFeaturePostRejectsUnknownType(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	u := f.user(t, true)
	_, err := f.svc.FeaturePost(context.Background(), u.ID, "x", "project")
	assert.ErrorIs(t, err, ErrInvalidPostType)
}

func TestFeaturePostPaymentFailureSkipsSideEffect(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	u := f.user(t, false)
	ctx := context.Background()
	g := &models.Group{Name: "Networks", PrivacyLevel: domain.PrivacyPublic, CreatedBy: u.ID}
	require.NoError(t, f.stores.Groups.Create(ctx, g))

	_, err := f.svc.FeaturePost(ctx, u.ID, g.ID, domain.PostTypeGroup)
	assert.ErrorIs(t, err, ErrPaymentFailed)

	got, err := f.stores.Groups.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, got.Featured)
	assert.Nil(t, got.FeaturedUntil)
}

func TestBumpResourceMovesUploadTimestamp(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	u := f.user(t, true)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour).UTC()
	r := &models.Resource{GroupID: "g1", UploadedBy: u.ID, FileName: "notes.pdf", StorageHash: "bafy", UploadTimestamp: old}
	require.NoError(t, f.stores.Resources.Create(ctx, r))

	res, err := f.svc.BumpResource(ctx, u.ID, r.ID)
	require.NoError(t, err)

	got, err := f.stores.Resources.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.UploadTimestamp.After(old))
	assert.False(t, got.Featured)

	p := f.payment(t, res.PaymentID)
	assert.Equal(t, domain.PurposeResourceBump, p.Purpose)
	assert.Equal(t, r.ID, p.Metadata["resourceId"])
}

func TestEntitlementPurchases(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	u := f.user(t, true)
	ctx := context.Background()

	res, err := f.svc.PurchaseAdvancedFilters(ctx, u.ID)
	require.NoError(t, err)
	p := f.payment(t, res.PaymentID)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("1.00")))
	assert.NotEmpty(t, p.Metadata["validUntil"])

	res, err = f.svc.CreatePremiumGroup(ctx, u.ID, "g9")
	require.NoError(t, err)
	p = f.payment(t, res.PaymentID)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("2.00")))
	assert.Equal(t, "g9", p.Metadata["groupId"])
	assert.Len(t, p.Metadata["premiumFeatures"], len(domain.PremiumGroupFeatures))

	history, err := f.svc.GetPaymentHistory(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	status, err := f.svc.GetPaymentStatus(ctx, res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, status.Status)
}

func TestCreateWalletIsIdempotent(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	u := f.user(t, true)
	require.NotNil(t, u.CustodialAddress)
	assert.True(t, common.IsHexAddress(*u.CustodialAddress))

	again, err := f.svc.CreateWallet(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, *u.CustodialAddress, *again.CustodialAddress)

	_, err = f.svc.CreateWallet(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPrices(t *testing.T) {
	f := newPaymentFixture(t, nil, false)
	assert.Equal(t, map[string]string{
		domain.PurposeFeaturedPost:    "0.50",
		domain.PurposeAdvancedFilters: "1.00",
		domain.PurposeResourceBump:    "0.25",
		domain.PurposePremiumGroup:    "2.00",
	}, f.svc.Prices())
}
