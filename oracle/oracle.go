// Package oracle resolves storage-provider voting weight from a Filecoin
// chain-data JSON-RPC endpoint. Answers are live reads against the current
// head; the voting engine snapshots them at admission time and nothing is
// cached here.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/filecoin-project/go-state-types/big"

	"fipvote/native/votes"
	"fipvote/observability"
)

// ErrUnavailable wraps transport and decode failures talking to the chain
// endpoint.
var ErrUnavailable = errors.New("oracle: chain endpoint unavailable")

// DefaultTimeout bounds each chain call. The upstream gateway answers head
// queries in well under a second; anything slower is treated as an outage.
const DefaultTimeout = 15 * time.Second

// powerClaim mirrors the Claim fields of the StateMinerPower result we read.
type powerClaim struct {
	RawBytePower big.Int
}

// minerPowerResult mirrors the lotus MinerPower response shape.
type minerPowerResult struct {
	MinerPower powerClaim
	TotalPower powerClaim
}

// minerInfoResult carries the subset of StateMinerInfo we consume.
type minerInfoResult struct {
	Owner  address.Address
	Worker address.Address
}

// tipSetKey is always passed as null: every query runs against the current
// chain head.
type tipSetKey *struct{}

// chainStruct receives the generated RPC stubs for the three state methods
// the oracle needs.
type chainStruct struct {
	Internal struct {
		StateMinerPower func(context.Context, address.Address, tipSetKey) (*minerPowerResult, error)
		StateMinerInfo  func(context.Context, address.Address, tipSetKey) (*minerInfoResult, error)
		StateAccountKey func(context.Context, address.Address, tipSetKey) (address.Address, error)
	}
}

// Config holds the per-network chain endpoints.
type Config struct {
	MainnetURL     string
	CalibrationURL string
	// Timeout bounds each RPC call; zero means DefaultTimeout.
	Timeout time.Duration
}

// Client implements votes.PowerOracle over per-network JSON-RPC connections.
type Client struct {
	endpoints map[votes.Network]*chainStruct
	closers   []jsonrpc.ClientCloser
}

var _ votes.PowerOracle = (*Client)(nil)

// New dials both network endpoints. Endpoints left empty are skipped; calls
// against them fail with ErrUnavailable.
func New(ctx context.Context, cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{endpoints: make(map[votes.Network]*chainStruct)}
	for ntw, url := range map[votes.Network]string{
		votes.NetworkMainnet:     cfg.MainnetURL,
		votes.NetworkCalibration: cfg.CalibrationURL,
	} {
		if url == "" {
			continue
		}
		var stub chainStruct
		closer, err := jsonrpc.NewMergeClient(ctx, url, "Filecoin",
			[]interface{}{&stub.Internal},
			nil,
			jsonrpc.WithTimeout(timeout),
		)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("oracle: dialing %s endpoint: %w", ntw, err)
		}
		c.endpoints[ntw] = &stub
		c.closers = append(c.closers, closer)
	}
	return c, nil
}

// Close releases the underlying RPC connections.
func (c *Client) Close() {
	for _, closer := range c.closers {
		closer()
	}
	c.closers = nil
}

func (c *Client) endpoint(ntw votes.Network) (*chainStruct, error) {
	stub, ok := c.endpoints[ntw]
	if !ok {
		return nil, fmt.Errorf("%w: no %s endpoint configured", ErrUnavailable, ntw)
	}
	return stub, nil
}

// MinerRawPower returns the miner's current raw byte power.
func (c *Client) MinerRawPower(ctx context.Context, minerID uint64, ntw votes.Network) (big.Int, error) {
	stub, err := c.endpoint(ntw)
	if err != nil {
		return big.Int{}, err
	}
	miner, err := address.NewIDAddress(minerID)
	if err != nil {
		return big.Int{}, fmt.Errorf("oracle: miner id %d: %w", minerID, err)
	}
	started := time.Now()
	res, err := stub.Internal.StateMinerPower(ctx, miner, nil)
	observability.Metrics().ObserveOracleCall(ntw.String(), "StateMinerPower", time.Since(started))
	if err != nil {
		return big.Int{}, fmt.Errorf("%w: StateMinerPower(%s): %v", ErrUnavailable, miner, err)
	}
	if res == nil || res.MinerPower.RawBytePower.Nil() {
		return big.Int{}, fmt.Errorf("%w: StateMinerPower(%s): empty result", ErrUnavailable, miner)
	}
	return res.MinerPower.RawBytePower, nil
}

// VerifyMinerControl confirms the claimed worker key controls the miner
// actor: the miner's worker id address is resolved to its account key and
// compared against the claim. Any failure or ambiguity denies.
func (c *Client) VerifyMinerControl(ctx context.Context, minerID uint64, worker string, ntw votes.Network) (bool, error) {
	stub, err := c.endpoint(ntw)
	if err != nil {
		return false, err
	}
	claimed, err := address.NewFromString(worker)
	if err != nil {
		return false, fmt.Errorf("oracle: worker address %q: %w", worker, err)
	}
	miner, err := address.NewIDAddress(minerID)
	if err != nil {
		return false, fmt.Errorf("oracle: miner id %d: %w", minerID, err)
	}
	started := time.Now()
	info, err := stub.Internal.StateMinerInfo(ctx, miner, nil)
	observability.Metrics().ObserveOracleCall(ntw.String(), "StateMinerInfo", time.Since(started))
	if err != nil {
		return false, fmt.Errorf("%w: StateMinerInfo(%s): %v", ErrUnavailable, miner, err)
	}
	if info == nil {
		return false, nil
	}
	if info.Worker == claimed {
		return true, nil
	}
	key, err := stub.Internal.StateAccountKey(ctx, info.Worker, nil)
	if err != nil {
		return false, fmt.Errorf("%w: StateAccountKey(%s): %v", ErrUnavailable, info.Worker, err)
	}
	return key == claimed, nil
}
