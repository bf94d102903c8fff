package fetcher

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// Minimal rate-oracle surface shared by the pools we watch. Both calls
	// return an annualised rate scaled by 1e18.
	rateOracleABIJSON = `[{"inputs":[],"name":"getSupplyRate","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"getBorrowRate","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`
)

var rateOracleABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(rateOracleABIJSON))
	if err != nil {
		panic("failed to parse rate oracle ABI: " + err.Error())
	}
	rateOracleABI = parsed
}

// OnChainOptions parameterise the on-chain rates fetcher.
type OnChainOptions struct {
	RPCURL    string
	Contracts map[string]string
	Timeout   time.Duration
}

// OnChain reads lending and borrowing rates straight from protocol contracts
// over Ethereum RPC, for protocols configured with a contract address instead
// of a REST endpoint.
type OnChain struct {
	opts      OnChainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewOnChain builds an on-chain rates fetcher.
func NewOnChain(opts OnChainOptions, logger zerolog.Logger) *OnChain {
	return &OnChain{opts: opts, logger: logger.With().Str("component", "onchain_fetcher").Logger()}
}

// FetchRates reads the protocol's supply and borrow rates from its contract.
func (o *OnChain) FetchRates(ctx context.Context, protocol string) (ProtocolRates, error) {
	if o.opts.RPCURL == "" {
		return ProtocolRates{}, errors.New("ethereum rpc url not configured")
	}
	contract, ok := o.opts.Contracts[protocol]
	if !ok || strings.TrimSpace(contract) == "" {
		return ProtocolRates{}, errors.New("no contract address configured for protocol " + protocol)
	}

	timeout := o.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := o.getClient(ctx)
	if err != nil {
		return ProtocolRates{}, err
	}

	addr := common.HexToAddress(contract)

	supply, err := o.callRate(ctx, client, addr, "getSupplyRate")
	if err != nil {
		return ProtocolRates{}, err
	}
	borrow, err := o.callRate(ctx, client, addr, "getBorrowRate")
	if err != nil {
		return ProtocolRates{}, err
	}

	return ProtocolRates{
		Protocol:  protocol,
		Lending:   RateReading{Value: supply, Present: true},
		Borrowing: RateReading{Value: borrow, Present: true},
		Source:    contract,
	}, nil
}

func (o *OnChain) callRate(ctx context.Context, client *ethclient.Client, addr common.Address, method string) (decimal.Decimal, error) {
	payload, err := rateOracleABI.Pack(method)
	if err != nil {
		return decimal.Decimal{}, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}

	outputs, err := rateOracleABI.Unpack(method, res)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(outputs) != 1 {
		return decimal.Decimal{}, errors.New("unexpected " + method + " response")
	}

	rate, ok := outputs[0].(*big.Int)
	if !ok {
		return decimal.Decimal{}, errors.New("failed to decode " + method + " output")
	}

	return decimal.NewFromBigInt(rate, -18), nil
}

func (o *OnChain) getClient(ctx context.Context) (*ethclient.Client, error) {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()

	if o.client != nil {
		return o.client, nil
	}

	client, err := ethclient.DialContext(ctx, o.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

var _ ProtocolRatesFetcher = (*OnChain)(nil)
