package competition

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	nativecommon "zizyhub/native/common"
	"zizyhub/native/staking"
	"zizyhub/observability/metrics"
)

const moduleName = "competition"

type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVGetList(key []byte, out interface{}) error
}

// StakeLedger is the staking surface periods and allocations depend on.
type StakeLedger interface {
	SetPeriodID(caller common.Address, periodID uint64) error
	PeriodSnapshotRange(periodID uint64) (*staking.PeriodRange, error)
	PeriodStakeAverage(account common.Address, periodID uint64) (*big.Int, bool, error)
}

// TicketLedger deploys and drives the per-competition ticket collections.
type TicketLedger interface {
	Deploy(caller common.Address, name, symbol string) (common.Address, error)
	MintBatch(caller, collection, to common.Address, tokenIDs []uint64) error
	TotalSupply(collection common.Address) (uint64, error)
	Pause(caller, collection common.Address) error
	Unpause(caller, collection common.Address) error
	SetBaseURI(caller, collection common.Address, baseURI string) error
}

// Assets moves ticket payments.
type Assets interface {
	TransferFungibleFrom(token, spender, from, to common.Address, amount *big.Int) error
}

// Registry manages periods, competitions and ticket allocations.
type Registry struct {
	state   registryState
	staking StakeLedger
	tickets TicketLedger
	assets  Assets
	emitter events.Emitter
	pauses  nativecommon.PauseView
	metrics *metrics.LedgerMetrics
	guard   nativecommon.ReentrancyGuard
	nowFn   func() int64
}

// NewRegistry constructs a registry with default dependencies.
func NewRegistry() *Registry {
	return &Registry{
		emitter: events.NoopEmitter{},
		metrics: metrics.Ledger(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetStaking configures the staking ledger.
func (r *Registry) SetStaking(ledger StakeLedger) { r.staking = ledger }

// SetTickets configures the ticket deployer.
func (r *Registry) SetTickets(tickets TicketLedger) { r.tickets = tickets }

// SetAssets configures the payment ledger.
func (r *Registry) SetAssets(assets Assets) { r.assets = assets }

// SetPauses wires the module pause switchboard.
func (r *Registry) SetPauses(p nativecommon.PauseView) { r.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	r.nowFn = now
}

// Address is the identity the registry uses towards the staking ledger, the
// ticket deployer and token allowances.
func (r *Registry) Address() common.Address { return nativecommon.ModuleAddress(moduleName) }

func (r *Registry) ready() error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if r.staking == nil || r.tickets == nil || r.assets == nil {
		return ErrNotConfigured
	}
	return nil
}

// Config returns the stored configuration.
func (r *Registry) Config() (*Config, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	cfg := new(Config)
	if _, err := r.state.KVGet(configKey, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *Registry) ownerConfig(caller common.Address) (*Config, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	if nativecommon.IsZeroAddress(cfg.Owner) || caller != cfg.Owner {
		return nil, ErrUnauthorized
	}
	return cfg, nil
}

// Initialize sets the owner, the payment receiver and the ticket minter once.
func (r *Registry) Initialize(owner, paymentReceiver, minter common.Address) error {
	cfg, err := r.Config()
	if err != nil {
		return err
	}
	if !nativecommon.IsZeroAddress(cfg.Owner) {
		return ErrAlreadyInitialized
	}
	switch {
	case nativecommon.IsZeroAddress(owner):
		return ErrZeroAddress
	case nativecommon.IsZeroAddress(paymentReceiver):
		return ErrZeroPaymentReceiver
	case nativecommon.IsZeroAddress(minter):
		return ErrZeroMinter
	}
	cfg.Owner = owner
	cfg.PaymentReceiver = paymentReceiver
	cfg.TicketMinter = minter
	return r.state.KVPut(configKey, cfg)
}

// SetPaymentReceiver changes the account ticket payments go to.
func (r *Registry) SetPaymentReceiver(caller, receiver common.Address) error {
	cfg, err := r.ownerConfig(caller)
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(receiver) {
		return ErrZeroPaymentReceiver
	}
	cfg.PaymentReceiver = receiver
	if err := r.state.KVPut(configKey, cfg); err != nil {
		return err
	}
	r.emit(EventTypePaymentReceiverUpdated, map[string]string{"receiver": receiver.Hex()})
	return nil
}

// SetTicketMinter changes the account allowed to mint tickets.
func (r *Registry) SetTicketMinter(caller, minter common.Address) error {
	cfg, err := r.ownerConfig(caller)
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(minter) {
		return ErrZeroMinter
	}
	cfg.TicketMinter = minter
	if err := r.state.KVPut(configKey, cfg); err != nil {
		return err
	}
	r.emit(EventTypeTicketMinterUpdated, map[string]string{"minter": minter.Hex()})
	return nil
}

func (r *Registry) periodIDs() ([]uint64, error) {
	var ids []uint64
	if err := r.state.KVGetList(periodListKey, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Registry) period(id uint64) (*Period, error) {
	p := new(Period)
	ok, err := r.state.KVGet(periodKey(id), p)
	if err != nil {
		return nil, err
	}
	if !ok || !p.Exists {
		return nil, fmt.Errorf("%w: %d", ErrPeriodNotFound, id)
	}
	return p, nil
}

func (r *Registry) isOver(cfg *Config, p *Period) bool {
	now := r.nowFn()
	if now > 0 && uint64(now) > p.EndTime {
		return true
	}
	return p.Activated && cfg.ActivePeriod != p.ID
}

func validTimes(start, end, buyStart, buyEnd uint64) error {
	if start >= end || buyStart > buyEnd {
		return ErrInvalidPeriodTimes
	}
	return nil
}

// CreatePeriod registers a new period.
func (r *Registry) CreatePeriod(caller common.Address, id, start, end, buyStart, buyEnd uint64) error {
	if _, err := r.ownerConfig(caller); err != nil {
		return err
	}
	if id == 0 {
		return ErrInvalidPeriodID
	}
	if err := validTimes(start, end, buyStart, buyEnd); err != nil {
		return err
	}
	exists, err := r.state.KVGet(periodKey(id), nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %d", ErrPeriodExists, id)
	}
	ids, err := r.periodIDs()
	if err != nil {
		return err
	}
	p := &Period{
		ID:                 id,
		StartTime:          start,
		EndTime:            end,
		TicketBuyStartTime: buyStart,
		TicketBuyEndTime:   buyEnd,
		Exists:             true,
	}
	if err := r.state.KVPut(periodKey(id), p); err != nil {
		return err
	}
	if err := r.state.KVPut(periodListKey, append(ids, id)); err != nil {
		return err
	}
	r.emit(periodEvent(EventTypePeriodCreated, p))
	return nil
}

// UpdatePeriod rewrites the times of an existing period. Moving the end time
// into the past ends the period.
func (r *Registry) UpdatePeriod(caller common.Address, id, start, end, buyStart, buyEnd uint64) error {
	if _, err := r.ownerConfig(caller); err != nil {
		return err
	}
	count, err := r.PeriodCount()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNoPeriod
	}
	if err := validTimes(start, end, buyStart, buyEnd); err != nil {
		return err
	}
	p, err := r.period(id)
	if err != nil {
		return err
	}
	p.StartTime, p.EndTime = start, end
	p.TicketBuyStartTime, p.TicketBuyEndTime = buyStart, buyEnd
	if err := r.state.KVPut(periodKey(id), p); err != nil {
		return err
	}
	r.emit(periodEvent(EventTypePeriodUpdated, p))
	return nil
}

// SetActivePeriod activates a period and takes its opening snapshot on the
// staking ledger. The previously active period is over from then on.
func (r *Registry) SetActivePeriod(caller common.Address, id uint64) error {
	cfg, err := r.ownerConfig(caller)
	if err != nil {
		return err
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	p, err := r.period(id)
	if err != nil {
		return err
	}
	if cfg.ActivePeriod == id {
		return ErrPeriodAlreadyActive
	}
	if r.isOver(cfg, p) {
		return ErrPeriodOver
	}
	return nativecommon.Atomic(r.state, func() error {
		p.Activated = true
		if err := r.state.KVPut(periodKey(id), p); err != nil {
			return err
		}
		cfg.ActivePeriod = id
		if err := r.state.KVPut(configKey, cfg); err != nil {
			return err
		}
		if err := r.staking.SetPeriodID(r.Address(), id); err != nil {
			return err
		}
		r.metrics.SetActivePeriod(id)
		r.emit(periodEvent(EventTypePeriodActivated, p))
		return nil
	})
}

// PeriodCount returns how many periods were created.
func (r *Registry) PeriodCount() (uint64, error) {
	if r == nil || r.state == nil {
		return 0, ErrNilState
	}
	ids, err := r.periodIDs()
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}

// ActivePeriodID returns the active period, zero when none was activated.
func (r *Registry) ActivePeriodID() (uint64, error) {
	cfg, err := r.Config()
	if err != nil {
		return 0, err
	}
	return cfg.ActivePeriod, nil
}

// Period returns the period with its derived state.
func (r *Registry) Period(id uint64) (*PeriodView, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	p, err := r.period(id)
	if err != nil {
		return nil, err
	}
	return &PeriodView{
		Period:           *p,
		CompetitionCount: uint64(len(p.CompetitionIDs)),
		IsOver:           r.isOver(cfg, p),
		IsActive:         cfg.ActivePeriod == id,
	}, nil
}

// PeriodWindow returns the period times read by the staking ledger.
func (r *Registry) PeriodWindow(id uint64) (*staking.Period, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	p, err := r.period(id)
	if err != nil {
		return nil, err
	}
	return p.window(), nil
}

func (r *Registry) competition(periodID, id uint64) (*Competition, error) {
	c := new(Competition)
	ok, err := r.state.KVGet(competitionKey(periodID, id), c)
	if err != nil {
		return nil, err
	}
	if !ok || !c.Exists {
		return nil, fmt.Errorf("%w: period %d competition %d", ErrCompetitionNotFound, periodID, id)
	}
	if c.TicketPrice == nil {
		c.TicketPrice = big.NewInt(0)
	}
	return c, nil
}

func (r *Registry) ownedCompetition(caller common.Address, periodID, id uint64) (*Competition, error) {
	if _, err := r.ownerConfig(caller); err != nil {
		return nil, err
	}
	if _, err := r.period(periodID); err != nil {
		return nil, err
	}
	return r.competition(periodID, id)
}

// CreateCompetition registers a competition under a running period and
// deploys its ticket ledger.
func (r *Registry) CreateCompetition(caller common.Address, periodID, id uint64, name, symbol string) (common.Address, error) {
	cfg, err := r.ownerConfig(caller)
	if err != nil {
		return common.Address{}, err
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return common.Address{}, err
	}
	p, err := r.period(periodID)
	if err != nil {
		return common.Address{}, err
	}
	if r.isOver(cfg, p) {
		return common.Address{}, ErrPeriodOver
	}
	exists, err := r.state.KVGet(competitionKey(periodID, id), nil)
	if err != nil {
		return common.Address{}, err
	}
	if exists {
		return common.Address{}, fmt.Errorf("%w: period %d competition %d", ErrCompetitionExists, periodID, id)
	}
	name, symbol = strings.TrimSpace(name), strings.TrimSpace(symbol)
	var ticket common.Address
	err = nativecommon.Atomic(r.state, func() error {
		addr, err := r.tickets.Deploy(r.Address(), name, symbol)
		if err != nil {
			return err
		}
		ticket = addr
		c := &Competition{
			PeriodID:    periodID,
			ID:          id,
			Name:        name,
			Symbol:      symbol,
			Ticket:      addr,
			TicketPrice: big.NewInt(0),
			Exists:      true,
		}
		if err := r.state.KVPut(competitionKey(periodID, id), c); err != nil {
			return err
		}
		p.CompetitionIDs = append(p.CompetitionIDs, id)
		if err := r.state.KVPut(periodKey(periodID), p); err != nil {
			return err
		}
		cfg.TotalCompetitionCount++
		if err := r.state.KVPut(configKey, cfg); err != nil {
			return err
		}
		r.emit(competitionEvent(EventTypeCompetitionCreated, c, map[string]string{"name": name, "symbol": symbol}))
		return nil
	})
	if err != nil {
		return common.Address{}, err
	}
	return ticket, nil
}

// SetCompetitionPayment configures the sell token and the ticket price.
func (r *Registry) SetCompetitionPayment(caller common.Address, periodID, id uint64, token common.Address, price *big.Int) error {
	c, err := r.ownedCompetition(caller, periodID, id)
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(token) {
		return ErrZeroPaymentToken
	}
	if !nativecommon.IsPositive(price) {
		return ErrZeroTicketPrice
	}
	c.SellToken = token
	c.TicketPrice = new(big.Int).Set(price)
	if err := r.state.KVPut(competitionKey(periodID, id), c); err != nil {
		return err
	}
	r.emit(competitionEvent(EventTypePaymentUpdated, c, map[string]string{"token": token.Hex(), "price": price.String()}))
	return nil
}

// SetCompetitionSnapshotRange records which snapshots the competition
// considers. The range must lie inside the period's snapshot span. It is
// published configuration only: allocations always come from the cached
// period stake average.
func (r *Registry) SetCompetitionSnapshotRange(caller common.Address, periodID, id, min, max uint64) error {
	c, err := r.ownedCompetition(caller, periodID, id)
	if err != nil {
		return err
	}
	if min > max {
		return ErrInvalidRange
	}
	rng, err := r.staking.PeriodSnapshotRange(periodID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRangeOutsidePeriod, err)
	}
	if min < rng.Min || max > rng.Max {
		return fmt.Errorf("%w: period spans [%d,%d]", ErrRangeOutsidePeriod, rng.Min, rng.Max)
	}
	c.SnapshotMin, c.SnapshotMax = min, max
	if err := r.state.KVPut(competitionKey(periodID, id), c); err != nil {
		return err
	}
	r.emit(competitionEvent(EventTypeSnapshotRangeUpdated, c, map[string]string{
		"min": strconv.FormatUint(min, 10),
		"max": strconv.FormatUint(max, 10),
	}))
	return nil
}

// SetCompetitionTiers replaces the allocation tiers.
func (r *Registry) SetCompetitionTiers(caller common.Address, periodID, id uint64, mins, maxs []*big.Int, allocations []uint64) error {
	c, err := r.ownedCompetition(caller, periodID, id)
	if err != nil {
		return err
	}
	if len(mins) == 0 {
		return ErrEmptyTiers
	}
	if len(mins) != len(maxs) || len(mins) != len(allocations) {
		return ErrTierLengthMismatch
	}
	tiers := make([]Tier, len(mins))
	for i := range mins {
		if mins[i] == nil || maxs[i] == nil || mins[i].Sign() < 0 || mins[i].Cmp(maxs[i]) > 0 {
			return fmt.Errorf("%w: tier %d", ErrInvalidTier, i)
		}
		tiers[i] = Tier{Min: new(big.Int).Set(mins[i]), Max: new(big.Int).Set(maxs[i]), Allocation: allocations[i]}
	}
	c.Tiers = tiers
	if err := r.state.KVPut(competitionKey(periodID, id), c); err != nil {
		return err
	}
	r.emit(competitionEvent(EventTypeTiersUpdated, c, map[string]string{"count": strconv.Itoa(len(tiers))}))
	return nil
}

// Competition returns the competition record.
func (r *Registry) Competition(periodID, id uint64) (*Competition, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	return r.competition(periodID, id)
}

// CompetitionCount returns the number of competitions across all periods.
func (r *Registry) CompetitionCount() (uint64, error) {
	cfg, err := r.Config()
	if err != nil {
		return 0, err
	}
	return cfg.TotalCompetitionCount, nil
}

// PeriodCompetitionCount returns the number of competitions in a period.
func (r *Registry) PeriodCompetitionCount(periodID uint64) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, ErrNilState
	}
	p, err := r.period(periodID)
	if err != nil {
		return 0, err
	}
	return uint64(len(p.CompetitionIDs)), nil
}

// CompetitionIDWithIndex enumerates the competitions of a period.
func (r *Registry) CompetitionIDWithIndex(periodID, index uint64) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, ErrNilState
	}
	p, err := r.period(periodID)
	if err != nil {
		return 0, err
	}
	if index >= uint64(len(p.CompetitionIDs)) {
		return 0, ErrIndexOutOfBounds
	}
	return p.CompetitionIDs[index], nil
}

func (r *Registry) purchase(periodID, id uint64, account common.Address) (*Purchase, error) {
	pur := new(Purchase)
	if _, err := r.state.KVGet(purchaseKey(periodID, id, account), pur); err != nil {
		return nil, err
	}
	return pur, nil
}

// Purchase returns how many tickets account bought and had minted.
func (r *Registry) Purchase(account common.Address, periodID, id uint64) (*Purchase, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	return r.purchase(periodID, id, account)
}

func tierAllocation(tiers []Tier, average *big.Int) (uint64, bool) {
	for _, tier := range tiers {
		if tier.matches(average) {
			return tier.Allocation, true
		}
	}
	return 0, false
}

func (r *Registry) allocation(account common.Address, c *Competition) (*Allocation, error) {
	pur, err := r.purchase(c.PeriodID, c.ID, account)
	if err != nil {
		return nil, err
	}
	alloc := &Allocation{Bought: pur.Bought}
	average, calculated, err := r.staking.PeriodStakeAverage(account, c.PeriodID)
	if err != nil {
		return nil, err
	}
	if !calculated || average == nil {
		return alloc, nil
	}
	alloc.Max, alloc.HasAllocation = tierAllocation(c.Tiers, average)
	return alloc, nil
}

// Allocation derives account's ticket limit from its cached period stake
// average: the first tier containing the average wins.
func (r *Registry) Allocation(account common.Address, periodID, id uint64) (*Allocation, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	c, err := r.competition(periodID, id)
	if err != nil {
		return nil, err
	}
	return r.allocation(account, c)
}

func (r *Registry) canBuy(cfg *Config, c *Competition) (bool, error) {
	if !c.paymentConfigured() {
		return false, nil
	}
	p, err := r.period(c.PeriodID)
	if err != nil {
		return false, err
	}
	if r.isOver(cfg, p) {
		return false, nil
	}
	return p.window().InBuyWindow(r.nowFn()), nil
}

// CanTicketBuy reports whether the competition is configured and inside its
// period's buy window.
func (r *Registry) CanTicketBuy(periodID, id uint64) (bool, error) {
	cfg, err := r.Config()
	if err != nil {
		return false, err
	}
	c, err := r.competition(periodID, id)
	if err != nil {
		return false, err
	}
	return r.canBuy(cfg, c)
}

// BuyTicket charges caller count*price and raises its bought counter.
func (r *Registry) BuyTicket(caller common.Address, periodID, id, count uint64) (err error) {
	defer func() { r.record("buy_ticket", err) }()
	if err := r.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if count == 0 {
		return ErrInvalidTicketCount
	}
	cfg, err := r.Config()
	if err != nil {
		return err
	}
	c, err := r.competition(periodID, id)
	if err != nil {
		return err
	}
	ok, err := r.canBuy(cfg, c)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInBuyStage
	}
	alloc, err := r.allocation(caller, c)
	if err != nil {
		return err
	}
	if alloc.Bought > alloc.Max || count > alloc.Max-alloc.Bought {
		return fmt.Errorf("%w: bought %d of %d, requested %d", ErrMaxAllocationExceeded, alloc.Bought, alloc.Max, count)
	}
	cost, err := nativecommon.MulUint(c.TicketPrice, count)
	if err != nil {
		return err
	}
	if err := r.guard.Enter(); err != nil {
		return err
	}
	defer r.guard.Exit()

	return nativecommon.Atomic(r.state, func() error {
		pur, err := r.purchase(periodID, id, caller)
		if err != nil {
			return err
		}
		pur.Bought += count
		if err := r.state.KVPut(purchaseKey(periodID, id, caller), pur); err != nil {
			return err
		}
		c.TicketSold += count
		if err := r.state.KVPut(competitionKey(periodID, id), c); err != nil {
			return err
		}
		if err := r.assets.TransferFungibleFrom(c.SellToken, r.Address(), caller, cfg.PaymentReceiver, cost); err != nil {
			return err
		}
		r.metrics.RecordTicketsSold(periodID, count)
		kind, attrs := ticketEvent(EventTypeTicketBought, c, caller, count)
		attrs["cost"] = cost.String()
		r.emit(kind, attrs)
		return nil
	})
}

// MintTicket mints one ticket for an account that bought it.
func (r *Registry) MintTicket(caller common.Address, periodID, id uint64, to common.Address, ticketID uint64) error {
	return r.MintBatchTicket(caller, periodID, id, to, []uint64{ticketID})
}

// MintBatchTicket mints tickets on the competition's ledger. The account's
// cumulative minted count may never exceed what it bought.
func (r *Registry) MintBatchTicket(caller common.Address, periodID, id uint64, to common.Address, ticketIDs []uint64) (err error) {
	defer func() { r.record("mint_ticket", err) }()
	if err := r.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	cfg, err := r.Config()
	if err != nil {
		return err
	}
	if caller != cfg.TicketMinter {
		return ErrNotMinter
	}
	if len(ticketIDs) == 0 {
		return ErrEmptyTicketIDs
	}
	c, err := r.competition(periodID, id)
	if err != nil {
		return err
	}
	pur, err := r.purchase(periodID, id, to)
	if err != nil {
		return err
	}
	n := uint64(len(ticketIDs))
	if pur.Minted > pur.Bought || n > pur.Bought-pur.Minted {
		return fmt.Errorf("%w: minted %d of %d, requested %d", ErrMaximumTicketsMinted, pur.Minted, pur.Bought, n)
	}
	if err := r.guard.Enter(); err != nil {
		return err
	}
	defer r.guard.Exit()

	return nativecommon.Atomic(r.state, func() error {
		pur.Minted += n
		if err := r.state.KVPut(purchaseKey(periodID, id, to), pur); err != nil {
			return err
		}
		if err := r.tickets.MintBatch(r.Address(), c.Ticket, to, ticketIDs); err != nil {
			return err
		}
		r.emit(ticketEvent(EventTypeTicketMinted, c, to, n))
		return nil
	})
}

// TotalSupplyOfCompetition returns how many tickets were minted.
func (r *Registry) TotalSupplyOfCompetition(periodID, id uint64) (uint64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	c, err := r.competition(periodID, id)
	if err != nil {
		return 0, err
	}
	return r.tickets.TotalSupply(c.Ticket)
}

// PauseCompetitionTransfer halts ticket transfers.
func (r *Registry) PauseCompetitionTransfer(caller common.Address, periodID, id uint64) error {
	c, err := r.ownedCompetition(caller, periodID, id)
	if err != nil {
		return err
	}
	return r.tickets.Pause(r.Address(), c.Ticket)
}

// UnpauseCompetitionTransfer resumes ticket transfers.
func (r *Registry) UnpauseCompetitionTransfer(caller common.Address, periodID, id uint64) error {
	c, err := r.ownedCompetition(caller, periodID, id)
	if err != nil {
		return err
	}
	return r.tickets.Unpause(r.Address(), c.Ticket)
}

// SetCompetitionBaseURI sets the ticket metadata prefix.
func (r *Registry) SetCompetitionBaseURI(caller common.Address, periodID, id uint64, baseURI string) error {
	c, err := r.ownedCompetition(caller, periodID, id)
	if err != nil {
		return err
	}
	return r.tickets.SetBaseURI(r.Address(), c.Ticket, baseURI)
}

// Participation sums account's bought tickets and allocation limits over
// every competition of a period.
func (r *Registry) Participation(account common.Address, periodID uint64) (bought, limit uint64, err error) {
	if err := r.ready(); err != nil {
		return 0, 0, err
	}
	p, err := r.period(periodID)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range p.CompetitionIDs {
		c, err := r.competition(periodID, id)
		if err != nil {
			return 0, 0, err
		}
		alloc, err := r.allocation(account, c)
		if err != nil {
			return 0, 0, err
		}
		bought += alloc.Bought
		limit += alloc.Max
	}
	return bought, limit, nil
}

func (r *Registry) record(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.metrics.RecordOperation(moduleName, operation, outcome)
}
