package rewardhub

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	nativecommon "zizyhub/native/common"
	"zizyhub/native/treasury"
	"zizyhub/observability/metrics"
)

const moduleName = "rewardhub"

type hubState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVGetList(key []byte, out interface{}) error
}

// Assets is the ledger surface rewards are paid through.
type Assets interface {
	treasury.Assets
}

// Hub stores competition and airdrop rewards and pays them out of its vault.
type Hub struct {
	state   hubState
	assets  Assets
	vault   *treasury.Vault
	emitter events.Emitter
	pauses  nativecommon.PauseView
	metrics *metrics.LedgerMetrics
	guard   nativecommon.ReentrancyGuard
}

// NewHub constructs a hub with default dependencies.
func NewHub() *Hub {
	return &Hub{
		emitter: events.NoopEmitter{},
		metrics: metrics.Ledger(),
	}
}

// SetState configures the state backend.
func (h *Hub) SetState(state hubState) { h.state = state }

// SetAssets configures the asset ledger and the vault drawing on it.
func (h *Hub) SetAssets(assets Assets) {
	h.assets = assets
	h.vault = treasury.New(moduleName, assets, h.owner)
	h.vault.SetEmitter(h.emitter)
}

// SetPauses wires the module pause switchboard.
func (h *Hub) SetPauses(p nativecommon.PauseView) { h.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (h *Hub) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	h.emitter = emitter
	if h.vault != nil {
		h.vault.SetEmitter(emitter)
	}
}

// Address returns the vault account rewards are paid from.
func (h *Hub) Address() common.Address { return nativecommon.ModuleAddress(moduleName) }

// Treasury exposes the owner-only deposit and withdraw surface.
func (h *Hub) Treasury() *treasury.Vault { return h.vault }

func (h *Hub) ready() error {
	if h == nil || h.state == nil {
		return ErrNilState
	}
	if h.vault == nil {
		return fmt.Errorf("%w: assets", ErrNilState)
	}
	return nil
}

func (h *Hub) owner() (common.Address, error) {
	cfg, err := h.Config()
	if err != nil {
		return common.Address{}, err
	}
	return cfg.Owner, nil
}

// Config returns the stored configuration.
func (h *Hub) Config() (*Config, error) {
	if h == nil || h.state == nil {
		return nil, ErrNilState
	}
	cfg := new(Config)
	if _, err := h.state.KVGet(configKey, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Initialize sets the owner, the reward definer and the local chain id once.
func (h *Hub) Initialize(owner, definer common.Address, chainID uint64) error {
	cfg, err := h.Config()
	if err != nil {
		return err
	}
	if !nativecommon.IsZeroAddress(cfg.Owner) {
		return ErrAlreadyInitialized
	}
	if nativecommon.IsZeroAddress(owner) || nativecommon.IsZeroAddress(definer) {
		return ErrZeroAddress
	}
	cfg.Owner = owner
	cfg.RewardDefiner = definer
	cfg.ChainID = chainID
	return h.state.KVPut(configKey, cfg)
}

// ChainID returns the chain the hub pays out on.
func (h *Hub) ChainID() (uint64, error) {
	cfg, err := h.Config()
	if err != nil {
		return 0, err
	}
	return cfg.ChainID, nil
}

// SetRewardDefiner changes the account allowed to define rewards.
func (h *Hub) SetRewardDefiner(caller, definer common.Address) error {
	cfg, err := h.Config()
	if err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(cfg.Owner) || caller != cfg.Owner {
		return ErrUnauthorized
	}
	if nativecommon.IsZeroAddress(definer) {
		return fmt.Errorf("%w: reward definer", ErrZeroAddress)
	}
	cfg.RewardDefiner = definer
	if err := h.state.KVPut(configKey, cfg); err != nil {
		return err
	}
	h.emit(EventTypeRewardDefinerUpdated, map[string]string{"definer": definer.Hex()})
	return nil
}

func (h *Hub) definerConfig(caller common.Address) (*Config, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	cfg, err := h.Config()
	if err != nil {
		return nil, err
	}
	if nativecommon.IsZeroAddress(cfg.RewardDefiner) || caller != cfg.RewardDefiner {
		return nil, ErrNotRewardDefiner
	}
	return cfg, nil
}

func validateSpec(spec RewardSpec) error {
	if !spec.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRewardType, spec.Type)
	}
	if spec.Type.NeedsContract() && nativecommon.IsZeroAddress(spec.Address) {
		return ErrMissingContract
	}
	if spec.Type != nativecommon.RewardNFT && !nativecommon.IsPositive(spec.Amount) {
		return ErrInvalidAmount
	}
	return nil
}

func newReward(spec RewardSpec) *Reward {
	amount := big.NewInt(0)
	if spec.Amount != nil {
		amount.Set(spec.Amount)
	}
	addr := spec.Address
	if spec.Type == nativecommon.RewardNative {
		addr = common.Address{}
	}
	return &Reward{
		ChainID: spec.ChainID,
		Type:    spec.Type,
		Address: addr,
		Amount:  amount,
		TokenID: spec.TokenID,
		Exists:  true,
	}
}

func (h *Hub) competitionReward(ticket common.Address, ticketID uint64) (*Reward, error) {
	r := new(Reward)
	if _, err := h.state.KVGet(competitionRewardKey(ticket, ticketID), r); err != nil {
		return nil, err
	}
	r.normalize()
	return r, nil
}

// SetCompetitionReward defines or replaces the reward of a winning ticket.
// Claimed rewards are frozen.
func (h *Hub) SetCompetitionReward(caller common.Address, periodID, competitionID uint64, ticket common.Address, ticketID uint64, spec RewardSpec) error {
	cfg, err := h.definerConfig(caller)
	if err != nil {
		return err
	}
	if err := h.putCompetitionReward(cfg, periodID, competitionID, ticket, ticketID, spec); err != nil {
		return err
	}
	return h.state.KVPut(configKey, cfg)
}

func (h *Hub) putCompetitionReward(cfg *Config, periodID, competitionID uint64, ticket common.Address, ticketID uint64, spec RewardSpec) error {
	if nativecommon.IsZeroAddress(ticket) {
		return fmt.Errorf("%w: ticket", ErrZeroAddress)
	}
	if err := validateSpec(spec); err != nil {
		return err
	}
	existing, err := h.competitionReward(ticket, ticketID)
	if err != nil {
		return err
	}
	if existing.Exists && existing.IsClaimed {
		return ErrClaimedReward
	}
	reward := newReward(spec)
	reward.PeriodID = periodID
	reward.CompetitionID = competitionID
	kind := EventTypeCompetitionRewardSet
	if existing.Exists {
		reward.ID = existing.ID
		kind = EventTypeCompetitionRewardUpdated
	} else {
		cfg.NextRewardID++
		reward.ID = cfg.NextRewardID
	}
	if err := h.state.KVPut(competitionRewardKey(ticket, ticketID), reward); err != nil {
		return err
	}
	h.emit(kind, competitionAttributes(common.Address{}, ticket, ticketID, reward))
	return nil
}

// SetCompetitionNativeRewardBatch defines native rewards for many tickets.
func (h *Hub) SetCompetitionNativeRewardBatch(caller common.Address, periodID, competitionID uint64, ticket common.Address, chainID uint64, ticketIDs []uint64, amounts []*big.Int) error {
	return h.competitionBatch(caller, periodID, competitionID, ticket, ticketIDs, amounts, func(amount *big.Int) RewardSpec {
		return RewardSpec{ChainID: chainID, Type: nativecommon.RewardNative, Amount: amount}
	})
}

// SetCompetitionTokenRewardBatch defines token rewards for many tickets.
func (h *Hub) SetCompetitionTokenRewardBatch(caller common.Address, periodID, competitionID uint64, ticket common.Address, chainID uint64, token common.Address, ticketIDs []uint64, amounts []*big.Int) error {
	return h.competitionBatch(caller, periodID, competitionID, ticket, ticketIDs, amounts, func(amount *big.Int) RewardSpec {
		return RewardSpec{ChainID: chainID, Type: nativecommon.RewardToken, Address: token, Amount: amount}
	})
}

func (h *Hub) competitionBatch(caller common.Address, periodID, competitionID uint64, ticket common.Address, ticketIDs []uint64, amounts []*big.Int, spec func(*big.Int) RewardSpec) error {
	cfg, err := h.definerConfig(caller)
	if err != nil {
		return err
	}
	if len(ticketIDs) == 0 {
		return ErrEmptyRewards
	}
	if len(ticketIDs) != len(amounts) {
		return ErrLengthMismatch
	}
	return nativecommon.Atomic(h.state, func() error {
		for i, id := range ticketIDs {
			if err := h.putCompetitionReward(cfg, periodID, competitionID, ticket, id, spec(amounts[i])); err != nil {
				return fmt.Errorf("ticket %d: %w", id, err)
			}
		}
		return h.state.KVPut(configKey, cfg)
	})
}

// CompetitionReward returns the reward of a ticket. Missing rewards come
// back with Exists unset.
func (h *Hub) CompetitionReward(ticket common.Address, ticketID uint64) (*Reward, error) {
	if h == nil || h.state == nil {
		return nil, ErrNilState
	}
	return h.competitionReward(ticket, ticketID)
}

func (h *Hub) airdrops(account common.Address, campaignID uint64) ([]Reward, error) {
	var list []Reward
	if err := h.state.KVGetList(airdropListKey(account, campaignID), &list); err != nil {
		return nil, err
	}
	for i := range list {
		list[i].normalize()
	}
	return list, nil
}

// SetAirdropReward appends a reward to account's campaign list.
func (h *Hub) SetAirdropReward(caller, account common.Address, campaignID uint64, spec RewardSpec) error {
	cfg, err := h.definerConfig(caller)
	if err != nil {
		return err
	}
	return nativecommon.Atomic(h.state, func() error {
		if err := h.appendAirdrop(cfg, account, campaignID, spec); err != nil {
			return err
		}
		return h.state.KVPut(configKey, cfg)
	})
}

func (h *Hub) appendAirdrop(cfg *Config, account common.Address, campaignID uint64, spec RewardSpec) error {
	if nativecommon.IsZeroAddress(account) {
		return fmt.Errorf("%w: account", ErrZeroAddress)
	}
	if err := validateSpec(spec); err != nil {
		return err
	}
	list, err := h.airdrops(account, campaignID)
	if err != nil {
		return err
	}
	cfg.NextRewardID++
	reward := newReward(spec)
	reward.ID = cfg.NextRewardID
	list = append(list, *reward)
	if err := h.state.KVPut(airdropListKey(account, campaignID), list); err != nil {
		return err
	}
	h.emit(EventTypeAirdropRewardSet, airdropAttributes(account, campaignID, uint64(len(list)-1), reward))
	return nil
}

// SetAirdropNativeRewardBatch appends one native reward per account.
func (h *Hub) SetAirdropNativeRewardBatch(caller common.Address, campaignID, chainID uint64, accounts []common.Address, amounts []*big.Int) error {
	return h.airdropBatch(caller, campaignID, accounts, amounts, func(amount *big.Int) RewardSpec {
		return RewardSpec{ChainID: chainID, Type: nativecommon.RewardNative, Amount: amount}
	})
}

// SetAirdropTokenRewardBatch appends one token reward per account.
func (h *Hub) SetAirdropTokenRewardBatch(caller common.Address, campaignID uint64, token common.Address, chainID uint64, accounts []common.Address, amounts []*big.Int) error {
	return h.airdropBatch(caller, campaignID, accounts, amounts, func(amount *big.Int) RewardSpec {
		return RewardSpec{ChainID: chainID, Type: nativecommon.RewardToken, Address: token, Amount: amount}
	})
}

func (h *Hub) airdropBatch(caller common.Address, campaignID uint64, accounts []common.Address, amounts []*big.Int, spec func(*big.Int) RewardSpec) error {
	cfg, err := h.definerConfig(caller)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return ErrEmptyRewards
	}
	if len(accounts) != len(amounts) {
		return ErrLengthMismatch
	}
	return nativecommon.Atomic(h.state, func() error {
		for i, account := range accounts {
			if err := h.appendAirdrop(cfg, account, campaignID, spec(amounts[i])); err != nil {
				return fmt.Errorf("account %s: %w", account.Hex(), err)
			}
		}
		return h.state.KVPut(configKey, cfg)
	})
}

// RemoveAirdropReward deletes an unclaimed reward by moving the last reward
// of the list into its slot. The moved reward changes index.
func (h *Hub) RemoveAirdropReward(caller, account common.Address, campaignID, index uint64) error {
	if _, err := h.definerConfig(caller); err != nil {
		return err
	}
	list, err := h.airdrops(account, campaignID)
	if err != nil {
		return err
	}
	if index >= uint64(len(list)) {
		return ErrIndexOutOfBounds
	}
	removed := list[index]
	if removed.IsClaimed {
		return ErrRemoveClaimed
	}
	last := len(list) - 1
	list[index] = list[last]
	list = list[:last]
	if err := h.state.KVPut(airdropListKey(account, campaignID), list); err != nil {
		return err
	}
	h.emit(EventTypeAirdropRewardRemoved, airdropAttributes(account, campaignID, index, &removed))
	return nil
}

// AirdropReward returns the reward at index.
func (h *Hub) AirdropReward(account common.Address, campaignID, index uint64) (*Reward, error) {
	if h == nil || h.state == nil {
		return nil, ErrNilState
	}
	list, err := h.airdrops(account, campaignID)
	if err != nil {
		return nil, err
	}
	if index >= uint64(len(list)) {
		return nil, ErrIndexOutOfBounds
	}
	reward := list[index]
	return &reward, nil
}

// AirdropRewardCount returns the length of account's campaign list.
func (h *Hub) AirdropRewardCount(account common.Address, campaignID uint64) (uint64, error) {
	if h == nil || h.state == nil {
		return 0, ErrNilState
	}
	list, err := h.airdrops(account, campaignID)
	if err != nil {
		return 0, err
	}
	return uint64(len(list)), nil
}

// UnclaimedAirdropRewardCount counts the rewards account can still claim.
func (h *Hub) UnclaimedAirdropRewardCount(account common.Address, campaignID uint64) (uint64, error) {
	if h == nil || h.state == nil {
		return 0, ErrNilState
	}
	list, err := h.airdrops(account, campaignID)
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, r := range list {
		if !r.IsClaimed {
			n++
		}
	}
	return n, nil
}

// transferReward pays a reward that lives on this chain. Rewards for other
// chains move nothing here; the claimed flag is what settlement acts on.
func (h *Hub) transferReward(cfg *Config, to common.Address, reward *Reward) (crossChain bool, err error) {
	if reward.ChainID != cfg.ChainID {
		return true, nil
	}
	if err := h.vault.Send(reward.Type, reward.Address, to, reward.Amount, reward.TokenID); err != nil {
		return false, err
	}
	return false, nil
}

func (h *Hub) beginClaim() (*Config, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(h.pauses, moduleName); err != nil {
		return nil, err
	}
	return h.Config()
}

// ClaimCompetitionReward pays the reward of a ticket to its holder.
func (h *Hub) ClaimCompetitionReward(caller, ticket common.Address, ticketID uint64) error {
	cfg, err := h.beginClaim()
	if err != nil {
		return err
	}
	reward, err := h.competitionReward(ticket, ticketID)
	if err != nil {
		return err
	}
	if !reward.Exists {
		return ErrRewardNotFound
	}
	holder, err := h.assets.OwnerOf(ticket, ticketID)
	if err != nil {
		return err
	}
	if holder != caller {
		return ErrNotTicketOwner
	}
	if reward.IsClaimed {
		return ErrAlreadyClaimed
	}
	if err := h.guard.Enter(); err != nil {
		return err
	}
	defer h.guard.Exit()

	return nativecommon.Atomic(h.state, func() error {
		reward.IsClaimed = true
		if err := h.state.KVPut(competitionRewardKey(ticket, ticketID), reward); err != nil {
			return err
		}
		crossChain, err := h.transferReward(cfg, caller, reward)
		if err != nil {
			return err
		}
		kind := EventTypeCompetitionClaimed
		if crossChain {
			kind = EventTypeCompetitionClaimedCrossChain
		}
		return h.publishClaim(kind, competitionAttributes(caller, ticket, ticketID, reward), crossChain)
	})
}

// ClaimAirdropReward pays one airdrop reward of caller.
func (h *Hub) ClaimAirdropReward(caller common.Address, campaignID, index uint64) error {
	cfg, err := h.beginClaim()
	if err != nil {
		return err
	}
	list, err := h.airdrops(caller, campaignID)
	if err != nil {
		return err
	}
	if index >= uint64(len(list)) {
		return ErrIndexOutOfBounds
	}
	if list[index].IsClaimed {
		return ErrAlreadyClaimed
	}
	if err := h.guard.Enter(); err != nil {
		return err
	}
	defer h.guard.Exit()

	return nativecommon.Atomic(h.state, func() error {
		return h.claimAirdrop(cfg, caller, campaignID, list, index)
	})
}

// ClaimAllAirdropRewards pays every unclaimed reward of caller's campaign
// list and returns how many were claimed. An empty list is not an error.
func (h *Hub) ClaimAllAirdropRewards(caller common.Address, campaignID uint64) (int, error) {
	cfg, err := h.beginClaim()
	if err != nil {
		return 0, err
	}
	list, err := h.airdrops(caller, campaignID)
	if err != nil {
		return 0, err
	}
	if err := h.guard.Enter(); err != nil {
		return 0, err
	}
	defer h.guard.Exit()

	claimed := 0
	err = nativecommon.Atomic(h.state, func() error {
		for i := range list {
			if list[i].IsClaimed {
				continue
			}
			if err := h.claimAirdrop(cfg, caller, campaignID, list, uint64(i)); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
			claimed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return claimed, nil
}

func (h *Hub) claimAirdrop(cfg *Config, account common.Address, campaignID uint64, list []Reward, index uint64) error {
	reward := &list[index]
	reward.IsClaimed = true
	if err := h.state.KVPut(airdropListKey(account, campaignID), list); err != nil {
		return err
	}
	crossChain, err := h.transferReward(cfg, account, reward)
	if err != nil {
		return err
	}
	kind := EventTypeAirdropClaimed
	if crossChain {
		kind = EventTypeAirdropClaimedCrossChain
	}
	return h.publishClaim(kind, airdropAttributes(account, campaignID, index, reward), crossChain)
}

// publishClaim emits the claim event. Cross-chain claims are also staged in
// the settlement outbox within the same commit.
func (h *Hub) publishClaim(kind string, attrs map[string]string, crossChain bool) error {
	if crossChain {
		if _, err := nativecommon.StageSettlement(h.state, kind, attrs); err != nil {
			return err
		}
	}
	h.recordClaim(crossChain)
	h.emit(kind, attrs)
	return nil
}

func (h *Hub) recordClaim(crossChain bool) {
	route := "local"
	if crossChain {
		route = "cross_chain"
	}
	h.metrics.RecordClaim(moduleName, route)
}
