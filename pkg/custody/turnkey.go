package custody

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"campusconnect/pkg/evm"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	sdk "github.com/tkhq/go-sdk"
	"github.com/tkhq/go-sdk/pkg/api/client"
	"github.com/tkhq/go-sdk/pkg/api/client/activities"
	"github.com/tkhq/go-sdk/pkg/api/client/signing"
	"github.com/tkhq/go-sdk/pkg/api/client/wallets"
	"github.com/tkhq/go-sdk/pkg/api/models"
	"github.com/tkhq/go-sdk/pkg/apikey"
)

const (
	activitySignTransaction = "ACTIVITY_TYPE_SIGN_TRANSACTION_V2"
	activityCreateWallet    = "ACTIVITY_TYPE_CREATE_WALLET"

	statusCompleted = "ACTIVITY_STATUS_COMPLETED"
	statusFailed    = "ACTIVITY_STATUS_FAILED"
	statusRejected  = "ACTIVITY_STATUS_REJECTED"
)

// TurnkeyClient creates wallets and signs transactions through the Turnkey
// API. Activities that are still pending or waiting on consensus are polled
// until they settle or PollTimeout passes.
type TurnkeyClient struct {
	OrganizationID string
	PollInterval   time.Duration
	PollTimeout    time.Duration
	api            *client.TurnkeyAPI
	auth           *sdk.Authenticator
}

func NewTurnkeyClient(baseURL, organizationID, apiPublicKey, apiPrivateKey string) (*TurnkeyClient, error) {
	if baseURL == "" {
		baseURL = "https://api.turnkey.com"
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("turnkey base url %q: invalid", baseURL)
	}
	key, err := apikey.FromTurnkeyPrivateKey(strings.TrimPrefix(apiPrivateKey, "0x"), apikey.SchemeP256)
	if err != nil {
		return nil, fmt.Errorf("turnkey api key: %w", err)
	}
	if apiPublicKey != "" && !strings.EqualFold(key.TkPublicKey, apiPublicKey) {
		return nil, errors.New("turnkey api key: public key does not match private key")
	}
	basePath := u.Path
	if basePath == "" {
		basePath = "/"
	}
	transport := client.DefaultTransportConfig().
		WithHost(u.Host).
		WithBasePath(basePath).
		WithSchemes([]string{u.Scheme})
	return &TurnkeyClient{
		OrganizationID: organizationID,
		PollInterval:   time.Second,
		PollTimeout:    time.Minute,
		api:            client.NewHTTPClientWithConfig(nil, transport),
		auth:           &sdk.Authenticator{Key: key},
	}, nil
}

func timestamp() *string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return &ts
}

func str(s string) *string { return &s }

// settle returns the finished activity, polling while it is pending or
// waiting on consensus.
func (c *TurnkeyClient) settle(ctx context.Context, activity *models.Activity) (*models.Activity, error) {
	deadline := time.Now().Add(c.PollTimeout)
	for {
		if activity == nil || activity.Status == nil {
			return nil, fmt.Errorf("%w: empty activity", ErrActivityNotCompleted)
		}
		id := ""
		if activity.ID != nil {
			id = *activity.ID
		}
		switch status := string(*activity.Status); status {
		case statusCompleted:
			if activity.Result == nil {
				return nil, fmt.Errorf("%w: %s has no result", ErrActivityNotCompleted, id)
			}
			return activity, nil
		case statusFailed, statusRejected:
			return nil, fmt.Errorf("%w: %s %s", ErrActivityNotCompleted, id, status)
		default:
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("%w: %s still %s", ErrActivityNotCompleted, id, status)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.PollInterval):
		}

		params := activities.NewGetActivityParams().WithContext(ctx).WithBody(&models.GetActivityRequest{
			ActivityID:     str(id),
			OrganizationID: str(c.OrganizationID),
		})
		resp, err := c.api.Activities.GetActivity(params, c.auth)
		if err != nil {
			return nil, fmt.Errorf("turnkey get activity: %w", err)
		}
		activity = resp.Payload.Activity
	}
}

// CreateWallet creates a wallet holding one Ethereum account at the default path.
func (c *TurnkeyClient) CreateWallet(ctx context.Context, name string) (*Wallet, error) {
	params := wallets.NewCreateWalletParams().WithContext(ctx).WithBody(&models.CreateWalletRequest{
		OrganizationID: str(c.OrganizationID),
		TimestampMs:    timestamp(),
		Type:           str(activityCreateWallet),
		Parameters: &models.CreateWalletIntent{
			WalletName: str(name),
			Accounts: []*models.WalletAccountParams{{
				Curve:         models.Curve("CURVE_SECP256K1").Pointer(),
				PathFormat:    models.PathFormat("PATH_FORMAT_BIP32").Pointer(),
				Path:          str("m/44'/60'/0'/0/0"),
				AddressFormat: models.AddressFormat("ADDRESS_FORMAT_ETHEREUM").Pointer(),
			}},
		},
	})
	resp, err := c.api.Wallets.CreateWallet(params, c.auth)
	if err != nil {
		return nil, fmt.Errorf("turnkey create wallet: %w", err)
	}
	activity, err := c.settle(ctx, resp.Payload.Activity)
	if err != nil {
		return nil, err
	}
	out := activity.Result.CreateWalletResult
	if out == nil || out.WalletID == nil || len(out.Addresses) == 0 {
		return nil, errors.New("turnkey create wallet: no address returned")
	}
	return &Wallet{ID: *out.WalletID, Address: out.Addresses[0]}, nil
}

// SignTransaction asks Turnkey to sign tx with the account signWith.
func (c *TurnkeyClient) SignTransaction(ctx context.Context, signWith string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	unsigned, err := UnsignedPayload(tx, chainID)
	if err != nil {
		return nil, err
	}
	params := signing.NewSignTransactionParams().WithContext(ctx).WithBody(&models.SignTransactionRequest{
		OrganizationID: str(c.OrganizationID),
		TimestampMs:    timestamp(),
		Type:           str(activitySignTransaction),
		Parameters: &models.SignTransactionIntentV2{
			SignWith:            str(signWith),
			UnsignedTransaction: str(hex.EncodeToString(unsigned)),
			Type:                models.TransactionType("TRANSACTION_TYPE_ETHEREUM").Pointer(),
		},
	})
	resp, err := c.api.Signing.SignTransaction(params, c.auth)
	if err != nil {
		return nil, fmt.Errorf("turnkey sign transaction: %w", err)
	}
	activity, err := c.settle(ctx, resp.Payload.Activity)
	if err != nil {
		return nil, err
	}
	out := activity.Result.SignTransactionResult
	if out == nil || out.SignedTransaction == nil {
		return nil, errors.New("turnkey sign transaction: no signed transaction returned")
	}
	return evm.DecodeSignedTx(*out.SignedTransaction)
}

// UnsignedPayload is the EIP-155 RLP encoding of a legacy transaction before signing.
func UnsignedPayload(tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	if tx.Type() != types.LegacyTxType {
		return nil, fmt.Errorf("custody: unsupported transaction type %d", tx.Type())
	}
	return rlp.EncodeToBytes([]interface{}{
		tx.Nonce(), tx.GasPrice(), tx.Gas(), tx.To(), tx.Value(), tx.Data(),
		chainID, uint(0), uint(0),
	})
}
