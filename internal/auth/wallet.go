package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNonceNotFound    = errors.New("nonce not found or expired")
	ErrInvalidSignature = errors.New("invalid signature")
)

// NonceStore hands out single-use login nonces per wallet address.
type NonceStore interface {
	Issue(ctx context.Context, address string) (string, error)
	// Consume returns the outstanding nonce for address and forgets it.
	Consume(ctx context.Context, address string) (string, error)
}

// LoginMessage is the text a wallet signs to log in.
func LoginMessage(nonce string) string {
	return "Sign in to CampusConnect\nNonce: " + nonce
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// VerifySignature checks an EIP-191 personal_sign signature of message by address.
func VerifySignature(address, message, signature string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return ErrInvalidSignature
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return ErrInvalidSignature
	}
	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(address) {
		return ErrInvalidSignature
	}
	return nil
}

type memoryNonce struct {
	value   string
	expires time.Time
}

// MemoryNonceStore keeps nonces in process memory.
type MemoryNonceStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	nonces map[string]memoryNonce
	now    func() time.Time
}

func NewMemoryNonceStore(ttl time.Duration) *MemoryNonceStore {
	return &MemoryNonceStore{ttl: ttl, nonces: make(map[string]memoryNonce), now: time.Now}
}

func (s *MemoryNonceStore) Issue(_ context.Context, address string) (string, error) {
	n, err := newNonce()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.nonces {
		if now.After(v.expires) {
			delete(s.nonces, k)
		}
	}
	s.nonces[strings.ToLower(address)] = memoryNonce{value: n, expires: now.Add(s.ttl)}
	return n, nil
}

func (s *MemoryNonceStore) Consume(_ context.Context, address string) (string, error) {
	key := strings.ToLower(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nonces[key]
	delete(s.nonces, key)
	if !ok || s.now().After(n.expires) {
		return "", ErrNonceNotFound
	}
	return n.value, nil
}

// RedisNonceStore shares nonces between instances.
type RedisNonceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisNonceStore(rdb *redis.Client, ttl time.Duration) *RedisNonceStore {
	return &RedisNonceStore{rdb: rdb, ttl: ttl}
}

func (s *RedisNonceStore) key(address string) string {
	return "auth:nonce:" + strings.ToLower(address)
}

func (s *RedisNonceStore) Issue(ctx context.Context, address string) (string, error) {
	n, err := newNonce()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, s.key(address), n, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store nonce: %w", err)
	}
	return n, nil
}

func (s *RedisNonceStore) Consume(ctx context.Context, address string) (string, error) {
	n, err := s.rdb.GetDel(ctx, s.key(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNonceNotFound
	}
	if err != nil {
		return "", err
	}
	return n, nil
}
