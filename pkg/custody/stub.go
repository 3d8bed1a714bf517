package custody

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// StubSigner keeps keys in memory; for development and tests only.
type StubSigner struct {
	mu   sync.Mutex
	keys map[common.Address]*ecdsa.PrivateKey
}

func NewStubSigner() *StubSigner {
	return &StubSigner{keys: make(map[common.Address]*ecdsa.PrivateKey)}
}

func (s *StubSigner) CreateWallet(ctx context.Context, name string) (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	addr := s.Import(key)
	return &Wallet{ID: "stub_" + name + "_" + addr.Hex()[2:10], Address: addr.Hex()}, nil
}

// Import registers an existing key and returns its address.
func (s *StubSigner) Import(key *ecdsa.PrivateKey) common.Address {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	s.mu.Lock()
	s.keys[addr] = key
	s.mu.Unlock()
	return addr
}

func (s *StubSigner) SignTransaction(ctx context.Context, signWith string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	s.mu.Lock()
	key, ok := s.keys[common.HexToAddress(signWith)]
	s.mu.Unlock()
	if !ok {
		return nil, ErrUnknownSigner
	}
	return types.SignTx(tx, types.NewEIP155Signer(chainID), key)
}
