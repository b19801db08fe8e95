package popa

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	nativecommon "zizyhub/native/common"
	"zizyhub/observability/metrics"
)

const moduleName = "popa"

type gateState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVGetList(key []byte, out interface{}) error
}

// Collectibles deploys and mints the per-period collections.
type Collectibles interface {
	Deploy(caller common.Address, name, symbol string) (common.Address, error)
	Mint(caller, collection, to common.Address, tokenID uint64) error
	SetBaseURI(caller, collection common.Address, baseURI string) error
}

// Participation reports how many tickets an account bought in a period
// against its allocation ceiling.
type Participation interface {
	Participation(account common.Address, periodID uint64) (bought, limit uint64, err error)
}

// Assets forwards claim payments.
type Assets interface {
	TransferNative(from, to common.Address, amount *big.Int) error
}

// Gate lets period participants claim a collectible for a fee and has the
// minter issue it afterwards.
type Gate struct {
	state        gateState
	collectibles Collectibles
	competition  Participation
	assets       Assets
	emitter      events.Emitter
	pauses       nativecommon.PauseView
	metrics      *metrics.LedgerMetrics
	guard        nativecommon.ReentrancyGuard
}

// NewGate constructs a gate with default dependencies.
func NewGate() *Gate {
	return &Gate{
		emitter: events.NoopEmitter{},
		metrics: metrics.Ledger(),
	}
}

// SetState configures the state backend.
func (g *Gate) SetState(state gateState) { g.state = state }

// SetCollectibles configures the collection deployer.
func (g *Gate) SetCollectibles(c Collectibles) { g.collectibles = c }

// SetCompetition configures the participation source.
func (g *Gate) SetCompetition(p Participation) { g.competition = p }

// SetAssets configures the payment ledger.
func (g *Gate) SetAssets(assets Assets) { g.assets = assets }

// SetPauses wires the module pause switchboard.
func (g *Gate) SetPauses(p nativecommon.PauseView) { g.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (g *Gate) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	g.emitter = emitter
}

// Address returns the account that owns the deployed collections.
func (g *Gate) Address() common.Address { return nativecommon.ModuleAddress(moduleName) }

func (g *Gate) ready() error {
	if g == nil || g.state == nil {
		return ErrNilState
	}
	if g.collectibles == nil || g.competition == nil || g.assets == nil {
		return ErrNotConfigured
	}
	return nil
}

// Config returns the stored configuration.
func (g *Gate) Config() (*Config, error) {
	if g == nil || g.state == nil {
		return nil, ErrNilState
	}
	cfg := new(Config)
	if _, err := g.state.KVGet(configKey, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Initialize stores the roles and the claim price once. The allocation
// percentage starts at DefaultAllocationPercentage.
func (g *Gate) Initialize(owner, minter, factory common.Address, claimPayment *big.Int) error {
	cfg, err := g.Config()
	if err != nil {
		return err
	}
	if !nativecommon.IsZeroAddress(cfg.Owner) {
		return ErrAlreadyInitialized
	}
	if nativecommon.IsZeroAddress(owner) {
		return ErrZeroAddress
	}
	if nativecommon.IsZeroAddress(minter) {
		return ErrZeroMinter
	}
	if nativecommon.IsZeroAddress(factory) {
		return ErrZeroFactory
	}
	if claimPayment == nil || claimPayment.Sign() < 0 {
		return fmt.Errorf("%w: claim payment", ErrInsufficientPayment)
	}
	cfg.Owner = owner
	cfg.Minter = minter
	cfg.CompetitionFactory = factory
	cfg.ClaimPayment = nativecommon.Clone(claimPayment)
	cfg.AllocationPercentage = DefaultAllocationPercentage
	return g.state.KVPut(configKey, cfg)
}

func (g *Gate) ownerConfig(caller common.Address) (*Config, error) {
	cfg, err := g.Config()
	if err != nil {
		return nil, err
	}
	if nativecommon.IsZeroAddress(cfg.Owner) || caller != cfg.Owner {
		return nil, ErrUnauthorized
	}
	return cfg, nil
}

func (g *Gate) putConfig(cfg *Config, kind string, attrs map[string]string) error {
	if err := g.state.KVPut(configKey, cfg); err != nil {
		return err
	}
	g.emit(kind, attrs)
	return nil
}

// SetPopaMinter changes the account allowed to mint claimed collectibles
// and receiving claim payments.
func (g *Gate) SetPopaMinter(caller, minter common.Address) error {
	cfg, err := g.ownerConfig(caller)
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(minter) {
		return ErrZeroMinter
	}
	cfg.Minter = minter
	return g.putConfig(cfg, EventTypeMinterUpdated, map[string]string{"minter": minter.Hex()})
}

// SetCompetitionFactory records the competition registry periods refer to.
func (g *Gate) SetCompetitionFactory(caller, factory common.Address) error {
	cfg, err := g.ownerConfig(caller)
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(factory) {
		return ErrZeroFactory
	}
	cfg.CompetitionFactory = factory
	return g.putConfig(cfg, EventTypeCompetitionFactoryUpdated, map[string]string{"factory": factory.Hex()})
}

// SetClaimPaymentAmount changes the exact native payment a claim requires.
func (g *Gate) SetClaimPaymentAmount(caller common.Address, amount *big.Int) error {
	cfg, err := g.ownerConfig(caller)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInsufficientPayment
	}
	cfg.ClaimPayment = nativecommon.Clone(amount)
	return g.putConfig(cfg, EventTypeClaimPaymentUpdated, map[string]string{"amount": amount.String()})
}

// SetAllocationPercentage changes the participation threshold. Zero lets
// any participant claim.
func (g *Gate) SetAllocationPercentage(caller common.Address, percentage uint64) error {
	cfg, err := g.ownerConfig(caller)
	if err != nil {
		return err
	}
	if percentage > 100 {
		return ErrInvalidPercentage
	}
	cfg.AllocationPercentage = percentage
	return g.putConfig(cfg, EventTypeAllocationPercentageUpdated, map[string]string{"percentage": strconv.FormatUint(percentage, 10)})
}

// AllocationPercentage returns the participation threshold.
func (g *Gate) AllocationPercentage() (uint64, error) {
	cfg, err := g.Config()
	if err != nil {
		return 0, err
	}
	return cfg.AllocationPercentage, nil
}

// ClaimPayment returns the native payment a claim requires.
func (g *Gate) ClaimPayment() (*big.Int, error) {
	cfg, err := g.Config()
	if err != nil {
		return nil, err
	}
	return cfg.ClaimPayment, nil
}

func (g *Gate) deployment(periodID uint64) (*Deployment, error) {
	d := new(Deployment)
	if _, err := g.state.KVGet(periodCollectionKey(periodID), d); err != nil {
		return nil, err
	}
	return d, nil
}

// Deploy creates the collectible collection of a period. Each period gets
// exactly one.
func (g *Gate) Deploy(caller common.Address, name, symbol string, periodID uint64) (common.Address, error) {
	if err := g.ready(); err != nil {
		return common.Address{}, err
	}
	if _, err := g.ownerConfig(caller); err != nil {
		return common.Address{}, err
	}
	existing, err := g.deployment(periodID)
	if err != nil {
		return common.Address{}, err
	}
	if existing.Exists {
		return common.Address{}, ErrAlreadyDeployed
	}
	var collection common.Address
	err = nativecommon.Atomic(g.state, func() error {
		addr, err := g.collectibles.Deploy(g.Address(), name, symbol)
		if err != nil {
			return err
		}
		collection = addr
		var periods []uint64
		if err := g.state.KVGetList(deployedListKey, &periods); err != nil {
			return err
		}
		periods = append(periods, periodID)
		if err := g.state.KVPut(deployedListKey, periods); err != nil {
			return err
		}
		return g.state.KVPut(periodCollectionKey(periodID), &Deployment{PeriodID: periodID, Collection: addr, Exists: true})
	})
	if err != nil {
		return common.Address{}, err
	}
	g.emit(EventTypeDeployed, map[string]string{
		"periodId":   strconv.FormatUint(periodID, 10),
		"collection": collection.Hex(),
		"name":       name,
		"symbol":     symbol,
	})
	return collection, nil
}

// SetPopaBaseURI sets the metadata base URI of a period's collection.
func (g *Gate) SetPopaBaseURI(caller common.Address, periodID uint64, baseURI string) error {
	if err := g.ready(); err != nil {
		return err
	}
	if _, err := g.ownerConfig(caller); err != nil {
		return err
	}
	d, err := g.deployment(periodID)
	if err != nil {
		return err
	}
	if !d.Exists {
		return ErrUnknownPeriod
	}
	return g.collectibles.SetBaseURI(g.Address(), d.Collection, baseURI)
}

// DeployedCount returns how many period collections exist.
func (g *Gate) DeployedCount() (uint64, error) {
	if g == nil || g.state == nil {
		return 0, ErrNilState
	}
	var periods []uint64
	if err := g.state.KVGetList(deployedListKey, &periods); err != nil {
		return 0, err
	}
	return uint64(len(periods)), nil
}

// PopaContract returns the collection of a period, or the zero address.
func (g *Gate) PopaContract(periodID uint64) (common.Address, error) {
	if g == nil || g.state == nil {
		return common.Address{}, ErrNilState
	}
	d, err := g.deployment(periodID)
	if err != nil {
		return common.Address{}, err
	}
	return d.Collection, nil
}

// PopaContractWithIndex returns the i-th deployed collection.
func (g *Gate) PopaContractWithIndex(i uint64) (*Deployment, error) {
	if g == nil || g.state == nil {
		return nil, ErrNilState
	}
	var periods []uint64
	if err := g.state.KVGetList(deployedListKey, &periods); err != nil {
		return nil, err
	}
	if i >= uint64(len(periods)) {
		return nil, ErrIndexOutOfBounds
	}
	return g.deployment(periods[i])
}

func (g *Gate) claim(account common.Address, periodID uint64) (*Claim, error) {
	c := new(Claim)
	if _, err := g.state.KVGet(claimKey(account, periodID), c); err != nil {
		return nil, err
	}
	return c, nil
}

// PopaClaimed reports whether account claimed the period's collectible.
func (g *Gate) PopaClaimed(account common.Address, periodID uint64) (bool, error) {
	if g == nil || g.state == nil {
		return false, ErrNilState
	}
	c, err := g.claim(account, periodID)
	if err != nil {
		return false, err
	}
	return c.Claimed, nil
}

// PopaMinted reports whether the claimed collectible was minted.
func (g *Gate) PopaMinted(account common.Address, periodID uint64) (bool, error) {
	if g == nil || g.state == nil {
		return false, ErrNilState
	}
	c, err := g.claim(account, periodID)
	if err != nil {
		return false, err
	}
	return c.Minted, nil
}

// eligible applies the participation threshold: with a zero percentage any
// purchase qualifies, otherwise bought must reach percentage of the limit.
func eligible(bought, limit, percentage uint64) bool {
	if percentage == 0 {
		return bought > 0
	}
	if limit == 0 {
		return false
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(bought), big.NewInt(100)).
		Cmp(new(big.Int).Mul(new(big.Int).SetUint64(limit), new(big.Int).SetUint64(percentage))) >= 0
}

// ClaimableCheck reports whether account may claim the period's
// collectible now.
func (g *Gate) ClaimableCheck(account common.Address, periodID uint64) (bool, error) {
	if err := g.ready(); err != nil {
		return false, err
	}
	cfg, err := g.Config()
	if err != nil {
		return false, err
	}
	c, err := g.claim(account, periodID)
	if err != nil {
		return false, err
	}
	if c.Claimed {
		return false, nil
	}
	bought, limit, err := g.competition.Participation(account, periodID)
	if err != nil {
		return false, err
	}
	return eligible(bought, limit, cfg.AllocationPercentage), nil
}

// Claim records caller's claim of the period's collectible and forwards the
// exact claim payment to the minter.
func (g *Gate) Claim(caller common.Address, periodID uint64, payment *big.Int) (err error) {
	defer func() { g.record("claim", err) }()
	if err := g.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(g.pauses, moduleName); err != nil {
		return err
	}
	cfg, err := g.Config()
	if err != nil {
		return err
	}
	if payment == nil {
		payment = big.NewInt(0)
	}
	switch payment.Cmp(cfg.ClaimPayment) {
	case -1:
		return ErrInsufficientPayment
	case 1:
		return ErrOverpayment
	}
	d, err := g.deployment(periodID)
	if err != nil {
		return err
	}
	if !d.Exists {
		return ErrUnknownPeriod
	}
	c, err := g.claim(caller, periodID)
	if err != nil {
		return err
	}
	if c.Claimed {
		return ErrAlreadyClaimed
	}
	bought, limit, err := g.competition.Participation(caller, periodID)
	if err != nil {
		return err
	}
	if !eligible(bought, limit, cfg.AllocationPercentage) {
		return ErrConditionsNotMet
	}
	if err := g.guard.Enter(); err != nil {
		return err
	}
	defer g.guard.Exit()

	return nativecommon.Atomic(g.state, func() error {
		c.Claimed = true
		if err := g.state.KVPut(claimKey(caller, periodID), c); err != nil {
			return err
		}
		if payment.Sign() > 0 {
			if err := g.assets.TransferNative(caller, cfg.Minter, payment); err != nil {
				return fmt.Errorf("%w: %w", ErrTransferFailed, err)
			}
		}
		attrs := claimAttributes(caller, periodID, d.Collection)
		attrs["payment"] = payment.String()
		g.emit(EventTypeClaimed, attrs)
		return nil
	})
}

// MintClaimedPopa issues tokenID of the period collection to an account that
// claimed it. Each claim mints once.
func (g *Gate) MintClaimedPopa(caller, account common.Address, periodID, tokenID uint64) (err error) {
	defer func() { g.record("mint", err) }()
	if err := g.ready(); err != nil {
		return err
	}
	cfg, err := g.Config()
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(cfg.Minter) || caller != cfg.Minter {
		return ErrNotMinter
	}
	d, err := g.deployment(periodID)
	if err != nil {
		return err
	}
	if !d.Exists {
		return ErrUnknownPeriod
	}
	c, err := g.claim(account, periodID)
	if err != nil {
		return err
	}
	if !c.Claimed {
		return ErrNotClaimed
	}
	if c.Minted {
		return ErrAlreadyMinted
	}
	return nativecommon.Atomic(g.state, func() error {
		c.Minted = true
		c.TokenID = tokenID
		if err := g.state.KVPut(claimKey(account, periodID), c); err != nil {
			return err
		}
		if err := g.collectibles.Mint(g.Address(), d.Collection, account, tokenID); err != nil {
			return err
		}
		attrs := claimAttributes(account, periodID, d.Collection)
		attrs["tokenId"] = strconv.FormatUint(tokenID, 10)
		g.emit(EventTypeMinted, attrs)
		return nil
	})
}

func (g *Gate) record(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	g.metrics.RecordOperation(moduleName, op, outcome)
}
