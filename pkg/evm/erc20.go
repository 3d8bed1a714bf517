// Package evm holds the small slice of Ethereum tooling the payment flow needs:
// ERC-20 calldata, unit conversion, transfer construction and receipt polling.
package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
 {"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
 {"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

// TransferSelector is the 4-byte selector of transfer(address,uint256).
var TransferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EncodeTransfer returns calldata for transfer(to, amount).
func EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", to, amount)
}

// EncodeBalanceOf returns calldata for balanceOf(owner).
func EncodeBalanceOf(owner common.Address) ([]byte, error) {
	return erc20ABI.Pack("balanceOf", owner)
}

// DecodeBalance unpacks the uint256 returned by balanceOf.
func DecodeBalance(data []byte) (*big.Int, error) {
	out, err := erc20ABI.Unpack("balanceOf", data)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("decode balanceOf: unexpected %d outputs", len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode balanceOf: unexpected type %T", out[0])
	}
	return v, nil
}
