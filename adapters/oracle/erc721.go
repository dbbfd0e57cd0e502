// Package oracle reads token ownership and trait metadata from the ledger.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/layer-3/rangda/core"
)

// erc721ABI covers the enumerable ERC-721 surface we read, plus the
// collection's encryptedTraits extension.
const erc721ABI = `[
	{"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"tokenOfOwnerByIndex","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"encryptedTraits","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"bytes"}]}
]`

// ContractCaller is the slice of the Ethereum client the oracle needs.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC721Oracle implements ports.OwnershipOracle against an enumerable ERC-721
// contract over JSON-RPC. Every call is bounded by the configured timeout;
// RPC failures surface as core.ErrOracleUnavailable so callers can retry.
type ERC721Oracle struct {
	client   ContractCaller
	contract common.Address
	abi      abi.ABI
	timeout  time.Duration
}

// NewERC721Oracle creates an oracle for the given collection contract.
func NewERC721Oracle(client ContractCaller, contract common.Address, timeout time.Duration) (*ERC721Oracle, error) {
	parsed, err := abi.JSON(strings.NewReader(erc721ABI))
	if err != nil {
		return nil, fmt.Errorf("parse ERC-721 ABI: %w", err)
	}
	return &ERC721Oracle{
		client:   client,
		contract: contract,
		abi:      parsed,
		timeout:  timeout,
	}, nil
}

// OwnerOf returns the current owner address of a token.
func (o *ERC721Oracle) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return "", err
	}

	out, err := o.call(ctx, "ownerOf", id)
	if err != nil {
		return "", err
	}

	var owner common.Address
	if err := o.abi.UnpackIntoInterface(&owner, "ownerOf", out); err != nil {
		return "", fmt.Errorf("%w: decode ownerOf: %v", core.ErrOracleUnavailable, err)
	}
	return owner.Hex(), nil
}

// TokensOf enumerates all token ids held by address.
func (o *ERC721Oracle) TokensOf(ctx context.Context, address string) ([]string, error) {
	if !common.IsHexAddress(address) {
		return nil, core.ErrInvalidInput
	}
	owner := common.HexToAddress(address)

	out, err := o.call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	var balance *big.Int
	if err := o.abi.UnpackIntoInterface(&balance, "balanceOf", out); err != nil {
		return nil, fmt.Errorf("%w: decode balanceOf: %v", core.ErrOracleUnavailable, err)
	}

	n := balance.Int64()
	tokens := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		out, err := o.call(ctx, "tokenOfOwnerByIndex", owner, big.NewInt(i))
		if err != nil {
			return nil, err
		}
		var id *big.Int
		if err := o.abi.UnpackIntoInterface(&id, "tokenOfOwnerByIndex", out); err != nil {
			return nil, fmt.Errorf("%w: decode tokenOfOwnerByIndex: %v", core.ErrOracleUnavailable, err)
		}
		tokens = append(tokens, id.String())
	}
	return tokens, nil
}

// TokenMetadata returns the token's encrypted trait blob, or nil when the
// token has none.
func (o *ERC721Oracle) TokenMetadata(ctx context.Context, tokenID string) ([]byte, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return nil, err
	}

	out, err := o.call(ctx, "encryptedTraits", id)
	if err != nil {
		return nil, err
	}

	var blob []byte
	if err := o.abi.UnpackIntoInterface(&blob, "encryptedTraits", out); err != nil {
		return nil, fmt.Errorf("%w: decode encryptedTraits: %v", core.ErrOracleUnavailable, err)
	}
	if len(blob) == 0 {
		return nil, nil
	}
	return blob, nil
}

func (o *ERC721Oracle) call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := o.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	out, err := o.client.CallContract(ctx, ethereum.CallMsg{To: &o.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrOracleUnavailable, method, err)
	}
	return out, nil
}

// parseTokenID accepts decimal uint256 token ids.
func parseTokenID(tokenID string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok || id.Sign() < 0 {
		return nil, core.ErrInvalidInput
	}
	return id, nil
}
