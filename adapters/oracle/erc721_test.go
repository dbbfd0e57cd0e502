package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/rangda/core"
)

var contractAddr = common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC")

// fakeCaller answers contract calls from a script keyed by method selector.
type fakeCaller struct {
	oracle  *ERC721Oracle // for output packing
	owner   common.Address
	balance *big.Int
	tokens  []*big.Int
	traits  []byte
	err     error
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}

	selector := [4]byte{}
	copy(selector[:], msg.Data[:4])

	for name, method := range f.oracle.abi.Methods {
		if [4]byte(method.ID[:4]) != selector {
			continue
		}
		switch name {
		case "ownerOf":
			return method.Outputs.Pack(f.owner)
		case "balanceOf":
			return method.Outputs.Pack(f.balance)
		case "tokenOfOwnerByIndex":
			args, err := method.Inputs.Unpack(msg.Data[4:])
			if err != nil {
				return nil, err
			}
			idx := args[1].(*big.Int).Int64()
			return method.Outputs.Pack(f.tokens[idx])
		case "encryptedTraits":
			return method.Outputs.Pack(f.traits)
		}
	}
	return nil, errors.New("unexpected call")
}

func newFakeOracle(t *testing.T) (*ERC721Oracle, *fakeCaller) {
	t.Helper()
	caller := &fakeCaller{
		owner:   common.HexToAddress(holderAddr),
		balance: big.NewInt(2),
		tokens:  []*big.Int{big.NewInt(7), big.NewInt(42)},
		traits:  []byte(`{"personality":"oracle"}`),
	}
	o, err := NewERC721Oracle(caller, contractAddr, 5*time.Second)
	require.NoError(t, err)
	caller.oracle = o
	return o, caller
}

func TestERC721OwnerOf(t *testing.T) {
	o, _ := newFakeOracle(t)

	owner, err := o.OwnerOf(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(holderAddr).Hex(), owner)
}

func TestERC721TokensOf(t *testing.T) {
	o, _ := newFakeOracle(t)

	tokens, err := o.TokensOf(context.Background(), holderAddr)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "42"}, tokens)
}

func TestERC721TokenMetadata(t *testing.T) {
	o, caller := newFakeOracle(t)

	blob, err := o.TokenMetadata(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, caller.traits, blob)

	caller.traits = nil
	blob, err = o.TokenMetadata(context.Background(), "8")
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestERC721RPCFailure(t *testing.T) {
	o, caller := newFakeOracle(t)
	caller.err = errors.New("connection refused")

	_, err := o.OwnerOf(context.Background(), "7")
	assert.ErrorIs(t, err, core.ErrOracleUnavailable)

	_, err = o.TokensOf(context.Background(), holderAddr)
	assert.ErrorIs(t, err, core.ErrOracleUnavailable)
}

func TestERC721InvalidInput(t *testing.T) {
	o, _ := newFakeOracle(t)

	_, err := o.OwnerOf(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = o.TokensOf(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
