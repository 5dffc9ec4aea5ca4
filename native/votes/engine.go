package votes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/filecoin-project/go-state-types/big"

	"fipvote/storage"
)

// PowerOracle is the chain-data collaborator the engine snapshots voting
// weight from. Implementations query live state; the engine never caches
// answers across admissions.
type PowerOracle interface {
	// MinerRawPower returns the miner's current raw byte power.
	MinerRawPower(ctx context.Context, minerID uint64, ntw Network) (big.Int, error)
	// VerifyMinerControl reports whether the claimed worker key controls
	// the miner actor. Ambiguous answers must come back false.
	VerifyMinerControl(ctx context.Context, minerID uint64, worker string, ntw Network) (bool, error)
}

// MetricsRecorder receives ledger activity counts. The default is a no-op;
// the service wires the prometheus registry in at startup.
type MetricsRecorder interface {
	BallotAdmitted(network, choice string)
	BallotRejected(network, reason string)
	SweptConcluded(network string, count int)
}

type noopMetrics struct{}

func (noopMetrics) BallotAdmitted(string, string) {}
func (noopMetrics) BallotRejected(string, string) {}
func (noopMetrics) SweptConcluded(string, int)    {}

// Engine owns every read and write of voting state. All mutations of one
// (network, fip) ledger, one (network, address) registration, or one
// network's admin sets run under a per-key mutex, so duplicate checks and
// index updates cannot interleave with a concurrent writer.
type Engine struct {
	db      storage.Database
	oracle  PowerOracle
	nowFn   func() time.Time
	metrics MetricsRecorder

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine wires the engine to its store and oracle.
func NewEngine(db storage.Database, oracle PowerOracle) *Engine {
	return &Engine{
		db:      db,
		oracle:  oracle,
		nowFn:   func() time.Time { return time.Now().UTC() },
		metrics: noopMetrics{},
		locks:   make(map[string]*sync.Mutex),
	}
}

// SetMetrics configures the ledger metrics sink. Passing nil resets it to a
// no-op implementation.
func (e *Engine) SetMetrics(m MetricsRecorder) {
	if m == nil {
		e.metrics = noopMetrics{}
		return
	}
	e.metrics = m
}

// SetNowFunc overrides the time source used for start timestamps and window
// checks. Nil restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() time.Time {
	return e.nowFn()
}

// lock acquires the named mutex, creating it on first use. The returned
// function releases it.
func (e *Engine) lock(key string) func() {
	e.mu.Lock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func ledgerLockKey(ntw Network, fip uint32) string {
	return fmt.Sprintf("ledger/%d/%d", ntw, fip)
}

func registrationLockKey(ntw Network, addr [20]byte) string {
	return fmt.Sprintf("registration/%d/%x", ntw, addr)
}

func adminLockKey(ntw Network) string {
	return fmt.Sprintf("admin/%d", ntw)
}
