package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"campusconnect/internal/database"
	"campusconnect/internal/repository"
	"campusconnect/internal/ws"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svcdb_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newNotifier(db *gorm.DB, hub *ws.Hub) *NotificationService {
	return NewNotificationService(repository.NewNotificationRepository(db), hub, zap.NewNop())
}

// chainStub is an in-memory chain client.
type chainStub struct {
	mu       sync.Mutex
	sendErr  error
	receipts []*types.Receipt
	sent     []*types.Transaction
}

func (c *chainStub) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return make([]byte, 32), nil
}

func (c *chainStub) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (c *chainStub) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (c *chainStub) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, tx)
	return nil
}

func (c *chainStub) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.receipts) == 0 {
		return nil, ethereum.NotFound
	}
	r := c.receipts[0]
	c.receipts = c.receipts[1:]
	return r, nil
}
