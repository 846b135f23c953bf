package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	erc20TransferABIJSON = `[{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`

	defaultTransferGasLimit = uint64(90_000)
)

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABIJSON))
	if err != nil {
		panic("failed to parse ERC-20 ABI: " + err.Error())
	}
	erc20ABI = parsed
}

// OnChainOptions parameterise the ERC-20 settlement adapter.
type OnChainOptions struct {
	RPCURL        string
	TokenAddress  string
	PrivateKeyHex string
	ChainID       int64
	TokenDecimals int32
	GasLimit      uint64
	Timeout       time.Duration
}

// OnChain submits ERC-20 token transfers over Ethereum RPC.
type OnChain struct {
	opts      OnChainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewOnChain builds the on-chain adapter. The RPC connection is dialed lazily
// on first use so construction never touches the network.
func NewOnChain(opts OnChainOptions, logger zerolog.Logger) *OnChain {
	return &OnChain{opts: opts, logger: logger.With().Str("component", "onchain_adapter").Logger()}
}

// Execute signs and broadcasts a token transfer for the authorized amount.
func (a *OnChain) Execute(ctx context.Context, transactionID string, amount decimal.Decimal, payee string) (Outcome, error) {
	if a.opts.RPCURL == "" {
		return Outcome{}, errors.New("ethereum rpc url not configured")
	}
	if a.opts.TokenAddress == "" {
		return Outcome{}, errors.New("token contract address not configured")
	}
	if !common.IsHexAddress(payee) {
		return Outcome{}, fmt.Errorf("payee %q is not a hex address", payee)
	}

	timeout := a.opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	key, err := crypto.HexToECDSA(strings.TrimPrefix(a.opts.PrivateKeyHex, "0x"))
	if err != nil {
		return Outcome{}, fmt.Errorf("parse signing key: %w", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	client, err := a.getClient(ctx)
	if err != nil {
		return Outcome{}, err
	}

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("suggest gas price: %w", err)
	}

	atoms := amount.Shift(a.opts.TokenDecimals).Round(0)
	value, ok := new(big.Int).SetString(atoms.String(), 10)
	if !ok {
		return Outcome{}, fmt.Errorf("convert amount %s to token atoms", amount)
	}

	calldata, err := erc20ABI.Pack("transfer", common.HexToAddress(payee), value)
	if err != nil {
		return Outcome{}, fmt.Errorf("pack transfer calldata: %w", err)
	}

	gasLimit := a.opts.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultTransferGasLimit
	}

	token := common.HexToAddress(a.opts.TokenAddress)
	tx := types.NewTransaction(nonce, token, big.NewInt(0), gasLimit, gasPrice, calldata)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(a.opts.ChainID)), key)
	if err != nil {
		return Outcome{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return Outcome{}, fmt.Errorf("broadcast transaction: %w", err)
	}

	fee := decimal.NewFromBigInt(gasPrice, 0).Mul(decimal.NewFromInt(int64(gasLimit))).Shift(-18)
	hash := signed.Hash().Hex()

	a.logger.Info().
		Str("tx", transactionID).
		Str("hash", hash).
		Str("amount", amount.String()).
		Str("payee", payee).
		Msg("token transfer broadcast")

	return Outcome{Success: true, TxHash: hash, Fee: fee}, nil
}

func (a *OnChain) getClient(ctx context.Context) (*ethclient.Client, error) {
	a.clientMux.Lock()
	defer a.clientMux.Unlock()
	if a.client != nil {
		return a.client, nil
	}
	client, err := ethclient.DialContext(ctx, a.opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	a.client = client
	return client, nil
}

var _ Adapter = (*OnChain)(nil)
