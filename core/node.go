package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"zizyhub/core/events"
	"zizyhub/core/genesis"
	"zizyhub/core/state"
	"zizyhub/core/types"
	"zizyhub/native/assets"
	nativecommon "zizyhub/native/common"
	"zizyhub/native/competition"
	"zizyhub/native/nft"
	"zizyhub/native/popa"
	"zizyhub/native/rewardhub"
	"zizyhub/native/stakerewards"
	"zizyhub/native/staking"
	"zizyhub/observability"
	"zizyhub/storage"
)

var (
	// ErrGenesisMismatch is returned when a data directory was initialised
	// for another chain.
	ErrGenesisMismatch = errors.New("node: genesis chain id mismatch")
	// ErrNotInitialized is returned by operations that need genesis first.
	ErrNotInitialized = errors.New("node: genesis not applied")
	// ErrUnauthorized is returned when a non-owner toggles module pauses.
	ErrUnauthorized = errors.New("node: unauthorized")
	// ErrUnknownModule is returned for pause toggles on modules the node does not run.
	ErrUnknownModule = errors.New("node: unknown module")
	// ErrQuotaExceeded is returned when a caller used up its operation window.
	ErrQuotaExceeded = errors.New("node: quota exceeded")
)

const EventTypeModulePause = "node.module.pause_updated"

var (
	genesisKey = []byte("node/genesis")
	pausesKey  = []byte("node/pauses")
)

// KnownModules lists the modules that honour pause flags.
var KnownModules = []string{"staking", "competition", "rewardhub", "stakerewards", "popa", "nft"}

type genesisRecord struct {
	ChainID uint64
	Owner   common.Address
}

// pauseFlag is an owner pause toggle. Stored flags override the seeds given
// through WithPauses.
type pauseFlag struct {
	Module string
	Paused bool
}

// Node is the central controller, wiring every engine onto one state
// manager. Mutating calls run serially through Execute; each either commits
// with its events published to the bus or rolls back without a trace.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	state   *state.Manager
	buffer  *events.Buffer
	bus     *events.Bus
	pauses  *PauseRegistry
	clock   clockwork.Clock
	logger  *slog.Logger
	quota   nativecommon.Quota
	usage   map[common.Address]nativecommon.QuotaNow
	genesis *genesisRecord

	ledger       *assets.Ledger
	nfts         *nft.Registry
	staking      *staking.Engine
	competition  *competition.Registry
	rewardHub    *rewardhub.Hub
	stakeRewards *stakerewards.Engine
	popa         *popa.Gate
}

// Option customises a Node.
type Option func(*Node)

// WithClock drives engine time from clock.
func WithClock(clock clockwork.Clock) Option {
	return func(n *Node) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithLogger sets the node logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithQuota bounds mutating operations per caller and window.
func WithQuota(q nativecommon.Quota) Option {
	return func(n *Node) { n.quota = q }
}

// WithPauses seeds module pause flags.
func WithPauses(flags map[string]bool) Option {
	return func(n *Node) { n.pauses = NewPauseRegistry(flags) }
}

// WithEventHistory sets how many committed events the bus retains.
func WithEventHistory(size int) Option {
	return func(n *Node) { n.bus = events.NewBus(size) }
}

// NewNode builds every engine on db. Genesis must be applied before the
// engines accept calls.
func NewNode(db storage.Database, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database must not be nil")
	}
	n := &Node{
		db:     db,
		state:  state.NewManager(db),
		buffer: &events.Buffer{},
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
		usage:  make(map[common.Address]nativecommon.QuotaNow),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.bus == nil {
		n.bus = events.NewBus(0)
	}
	if n.pauses == nil {
		n.pauses = NewPauseRegistry(nil)
	}
	n.wire()

	var rec genesisRecord
	ok, err := n.state.KVGet(genesisKey, &rec)
	if err != nil {
		return nil, fmt.Errorf("node: load genesis marker: %w", err)
	}
	if ok {
		n.genesis = &rec
	}
	var flags []pauseFlag
	if err := n.state.KVGetList(pausesKey, &flags); err != nil {
		return nil, fmt.Errorf("node: load pause flags: %w", err)
	}
	for _, flag := range flags {
		n.pauses.set(flag.Module, flag.Paused)
	}
	return n, nil
}

func (n *Node) wire() {
	now := func() int64 { return n.clock.Now().Unix() }

	n.nfts = nft.NewRegistry(n.state)
	n.nfts.SetEmitter(n.buffer)
	n.nfts.SetPauses(n.pauses)
	n.nfts.SetNowFunc(now)

	n.ledger = assets.NewLedger(n.state, n.nfts)
	n.ledger.SetEmitter(n.buffer)

	n.staking = staking.NewEngine()
	n.staking.SetState(n.state)
	n.staking.SetAssets(n.ledger)
	n.staking.SetPauses(n.pauses)
	n.staking.SetEmitter(n.buffer)
	n.staking.SetNowFunc(now)

	n.competition = competition.NewRegistry()
	n.competition.SetState(n.state)
	n.competition.SetStaking(n.staking)
	n.competition.SetTickets(n.nfts)
	n.competition.SetAssets(n.ledger)
	n.competition.SetPauses(n.pauses)
	n.competition.SetEmitter(n.buffer)
	n.competition.SetNowFunc(now)
	n.staking.SetPeriods(n.competition)

	n.rewardHub = rewardhub.NewHub()
	n.rewardHub.SetState(n.state)
	n.rewardHub.SetAssets(n.ledger)
	n.rewardHub.SetPauses(n.pauses)
	n.rewardHub.SetEmitter(n.buffer)

	n.stakeRewards = stakerewards.NewEngine()
	n.stakeRewards.SetState(n.state)
	n.stakeRewards.SetStaking(n.staking)
	n.stakeRewards.SetAssets(n.ledger)
	n.stakeRewards.SetPauses(n.pauses)
	n.stakeRewards.SetEmitter(n.buffer)
	n.stakeRewards.SetNowFunc(now)

	n.popa = popa.NewGate()
	n.popa.SetState(n.state)
	n.popa.SetCollectibles(n.nfts)
	n.popa.SetCompetition(n.competition)
	n.popa.SetAssets(n.ledger)
	n.popa.SetPauses(n.pauses)
	n.popa.SetEmitter(n.buffer)

	// Reward vaults are only funded through their treasury deposits.
	n.ledger.RefuseNative(n.rewardHub.Address(), true)
	n.ledger.RefuseNative(n.stakeRewards.Address(), true)
}

// InitGenesis applies spec to an empty data directory. On a directory that
// already carries genesis it only checks the chain id.
func (n *Node) InitGenesis(spec *genesis.GenesisSpec) error {
	if spec == nil {
		return fmt.Errorf("node: genesis spec must not be nil")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.genesis != nil {
		if n.genesis.ChainID != spec.ChainID {
			return fmt.Errorf("%w: stored %d, spec %d", ErrGenesisMismatch, n.genesis.ChainID, spec.ChainID)
		}
		return nil
	}
	rec := &genesisRecord{ChainID: spec.ChainID, Owner: spec.Owner.Address}
	err := n.commit(func() error {
		if err := genesis.Apply(spec, n.modules()); err != nil {
			return err
		}
		return n.state.KVPut(genesisKey, rec)
	})
	if err != nil {
		return fmt.Errorf("node: apply genesis: %w", err)
	}
	n.genesis = rec
	n.logger.Info("genesis applied",
		slog.Uint64("chainId", spec.ChainID),
		slog.String("owner", spec.Owner.Hex()))
	return nil
}

func (n *Node) modules() genesis.Modules {
	return genesis.Modules{
		Ledger:       n.ledger,
		NFTs:         n.nfts,
		Staking:      n.staking,
		Competition:  n.competition,
		RewardHub:    n.rewardHub,
		StakeRewards: n.stakeRewards,
		Popa:         n.popa,
	}
}

// commit runs fn and either persists its writes and publishes its events,
// or discards both. Callers must hold n.mu.
func (n *Node) commit(fn func() error) error {
	n.buffer.Reset()
	if err := fn(); err != nil {
		n.state.Rollback()
		n.buffer.Reset()
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Rollback()
		n.buffer.Reset()
		return err
	}
	n.buffer.Flush(n.bus)
	return nil
}

// Execute runs a mutating operation on behalf of caller.
func (n *Node) Execute(ctx context.Context, caller common.Address, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.genesis == nil {
		return ErrNotInitialized
	}
	if err := n.consumeQuota(caller); err != nil {
		return err
	}
	return n.commit(fn)
}

// View runs a read-only function against committed state.
func (n *Node) View(fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := fn()
	// Reads never persist; drop anything a getter staged.
	n.state.Rollback()
	return err
}

func (n *Node) consumeQuota(caller common.Address) error {
	if n.quota.MaxRequestsPerWindow == 0 || nativecommon.IsZeroAddress(caller) {
		return nil
	}
	window := n.quota.Window(n.clock.Now().Unix())
	next, err := nativecommon.CheckQuota(n.quota, window, n.usage[caller], 1)
	if err != nil {
		observability.ModuleMetrics().RecordThrottle("node", "quota")
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	n.usage[caller] = next
	return nil
}

// SetPaused toggles a module pause. Only the genesis owner may call it.
func (n *Node) SetPaused(ctx context.Context, caller common.Address, module string, paused bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	module = normalizeModule(module)
	known := false
	for _, m := range KnownModules {
		if m == module {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.genesis == nil {
		return ErrNotInitialized
	}
	if caller != n.genesis.Owner {
		return ErrUnauthorized
	}
	err := n.commit(func() error {
		var flags []pauseFlag
		if err := n.state.KVGetList(pausesKey, &flags); err != nil {
			return err
		}
		found := false
		for i := range flags {
			if flags[i].Module == module {
				flags[i].Paused = paused
				found = true
			}
		}
		if !found {
			flags = append(flags, pauseFlag{Module: module, Paused: paused})
		}
		return n.state.KVPut(pausesKey, flags)
	})
	if err != nil {
		return fmt.Errorf("node: store pause flag: %w", err)
	}
	n.pauses.set(module, paused)
	n.bus.Emit(events.Wrap(&types.Event{
		Type: EventTypeModulePause,
		Attributes: map[string]string{
			"module": module,
			"paused": strconv.FormatBool(paused),
		},
	}))
	n.logger.Warn("module pause updated", slog.String("module", module), slog.Bool("paused", paused))
	return nil
}

// ChainID reports the chain id recorded at genesis.
func (n *Node) ChainID() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.genesis == nil {
		return 0, ErrNotInitialized
	}
	return n.genesis.ChainID, nil
}

// Owner reports the genesis owner.
func (n *Node) Owner() (common.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.genesis == nil {
		return common.Address{}, ErrNotInitialized
	}
	return n.genesis.Owner, nil
}

// Subscribe streams committed events; see events.Bus.Subscribe.
func (n *Node) Subscribe(after uint64, buffer int) (<-chan events.Record, []events.Record, func()) {
	return n.bus.Subscribe(after, buffer)
}

// PendingSettlements lists the cross-chain claims committed but not yet
// acknowledged by the settlement store.
func (n *Node) PendingSettlements() ([]nativecommon.SettlementRecord, error) {
	var pending []nativecommon.SettlementRecord
	err := n.View(func() error {
		var err error
		pending, err = nativecommon.PendingSettlements(n.state)
		return err
	})
	return pending, err
}

// AckSettlements drops outbox records once their jobs are persisted.
func (n *Node) AckSettlements(ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.commit(func() error {
		_, err := nativecommon.AckSettlements(n.state, ids)
		return err
	})
}

func (n *Node) Clock() clockwork.Clock { return n.clock }
func (n *Node) Events() *events.Bus { return n.bus }
func (n *Node) Pauses() *PauseRegistry { return n.pauses }
func (n *Node) Ledger() *assets.Ledger { return n.ledger }
func (n *Node) NFTs() *nft.Registry { return n.nfts }
func (n *Node) Staking() *staking.Engine { return n.staking }
func (n *Node) Competition() *competition.Registry { return n.competition }
func (n *Node) RewardHub() *rewardhub.Hub { return n.rewardHub }
func (n *Node) StakeRewards() *stakerewards.Engine { return n.stakeRewards }
func (n *Node) Popa() *popa.Gate { return n.popa }

// Close releases the database.
func (n *Node) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Rollback()
	n.db.Close()
}
