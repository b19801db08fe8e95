package nft

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/text/unicode/norm"

	"zizyhub/core/events"
	nativecommon "zizyhub/native/common"
)

const moduleName = "nft"

type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVGetList(key []byte, out interface{}) error
}

// Registry deploys collections and keeps their ownership ledgers. It plays
// the TicketDeployer role for competitions and the collectible factory role
// for period collectibles.
type Registry struct {
	st      registryState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewRegistry creates a registry backed by the provided state manager.
func NewRegistry(st registryState) *Registry {
	return &Registry{st: st, emitter: events.NoopEmitter{}, nowFn: func() int64 { return time.Now().Unix() }}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetPauses wires the module pause switchboard.
func (r *Registry) SetPauses(p nativecommon.PauseView) { r.pauses = p }

// SetNowFunc overrides the time source used for deterministic testing.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	r.nowFn = now
}

func (r *Registry) loadConfig() (*registryConfig, error) {
	cfg := new(registryConfig)
	if _, err := r.st.KVGet(configKey, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Initialize sets the registry owner once.
func (r *Registry) Initialize(owner common.Address) error {
	if r == nil || r.st == nil {
		return ErrNilState
	}
	if nativecommon.IsZeroAddress(owner) {
		return ErrZeroAddress
	}
	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}
	if !nativecommon.IsZeroAddress(cfg.Owner) {
		return fmt.Errorf("%w: already initialized", ErrUnauthorized)
	}
	cfg.Owner = owner
	return r.st.KVPut(configKey, cfg)
}

// Owner returns the registry owner.
func (r *Registry) Owner() (common.Address, error) {
	cfg, err := r.loadConfig()
	if err != nil {
		return common.Address{}, err
	}
	return cfg.Owner, nil
}

// SetDeployer authorises or revokes an account allowed to deploy collections.
func (r *Registry) SetDeployer(caller, deployer common.Address, allowed bool) error {
	if r == nil || r.st == nil {
		return ErrNilState
	}
	if nativecommon.IsZeroAddress(deployer) {
		return ErrZeroAddress
	}
	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}
	if caller != cfg.Owner {
		return ErrUnauthorized
	}
	next := make([]common.Address, 0, len(cfg.Deployers)+1)
	for _, existing := range cfg.Deployers {
		if existing != deployer {
			next = append(next, existing)
		}
	}
	if allowed {
		next = append(next, deployer)
	}
	cfg.Deployers = next
	return r.st.KVPut(configKey, cfg)
}

func (cfg *registryConfig) canDeploy(caller common.Address) bool {
	if caller == cfg.Owner {
		return true
	}
	for _, d := range cfg.Deployers {
		if d == caller {
			return true
		}
	}
	return false
}

// Deploy creates a new collection owned by caller. The address is derived
// from the caller and its deployment nonce. Name and symbol are stored in
// NFC form.
func (r *Registry) Deploy(caller common.Address, name, symbol string) (common.Address, error) {
	if r == nil || r.st == nil {
		return common.Address{}, ErrNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return common.Address{}, err
	}
	name = norm.NFC.String(strings.TrimSpace(name))
	symbol = norm.NFC.String(strings.TrimSpace(symbol))
	if name == "" || symbol == "" {
		return common.Address{}, ErrInvalidCollectionID
	}
	cfg, err := r.loadConfig()
	if err != nil {
		return common.Address{}, err
	}
	if !cfg.canDeploy(caller) {
		return common.Address{}, ErrUnauthorized
	}
	var nonce uint64
	if _, err := r.st.KVGet(deployNonceKey(caller), &nonce); err != nil {
		return common.Address{}, err
	}
	addr := ethcrypto.CreateAddress(caller, nonce)
	if err := r.st.KVPut(deployNonceKey(caller), nonce+1); err != nil {
		return common.Address{}, err
	}
	collection := &Collection{
		Address:   addr,
		Name:      name,
		Symbol:    symbol,
		Owner:     caller,
		Minter:    caller,
		CreatedAt: uint64(r.nowFn()),
	}
	if err := r.st.KVPut(collectionKey(addr), collection); err != nil {
		return common.Address{}, err
	}
	var deployed []common.Address
	if err := r.st.KVGetList(deployedListKey, &deployed); err != nil {
		return common.Address{}, err
	}
	deployed = append(deployed, addr)
	if err := r.st.KVPut(deployedListKey, deployed); err != nil {
		return common.Address{}, err
	}
	emit(r.emitter, CollectionDeployedEvent(collection))
	return addr, nil
}

// DeployedCount returns the number of deployed collections.
func (r *Registry) DeployedCount() (uint64, error) {
	var deployed []common.Address
	if err := r.st.KVGetList(deployedListKey, &deployed); err != nil {
		return 0, err
	}
	return uint64(len(deployed)), nil
}

// DeployedAt returns the collection deployed at index i.
func (r *Registry) DeployedAt(i uint64) (common.Address, error) {
	var deployed []common.Address
	if err := r.st.KVGetList(deployedListKey, &deployed); err != nil {
		return common.Address{}, err
	}
	if i >= uint64(len(deployed)) {
		return common.Address{}, ErrIndexOutOfBounds
	}
	return deployed[i], nil
}

// Collection returns the collection metadata.
func (r *Registry) Collection(addr common.Address) (*Collection, error) {
	if r == nil || r.st == nil {
		return nil, ErrNilState
	}
	collection := new(Collection)
	ok, err := r.st.KVGet(collectionKey(addr), collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, addr.Hex())
	}
	return collection, nil
}

func (r *Registry) ownedCollection(caller, addr common.Address) (*Collection, error) {
	collection, err := r.Collection(addr)
	if err != nil {
		return nil, err
	}
	if caller != collection.Owner {
		return nil, ErrUnauthorized
	}
	return collection, nil
}

// SetMinter changes the account allowed to mint.
func (r *Registry) SetMinter(caller, addr, minter common.Address) error {
	if nativecommon.IsZeroAddress(minter) {
		return ErrZeroAddress
	}
	collection, err := r.ownedCollection(caller, addr)
	if err != nil {
		return err
	}
	collection.Minter = minter
	if err := r.st.KVPut(collectionKey(addr), collection); err != nil {
		return err
	}
	emit(r.emitter, collectionEvent(EventTypeMinterUpdated, addr, map[string]string{"minter": minter.Hex()}))
	return nil
}

// SetBaseURI updates the metadata prefix used by TokenURI.
func (r *Registry) SetBaseURI(caller, addr common.Address, baseURI string) error {
	collection, err := r.ownedCollection(caller, addr)
	if err != nil {
		return err
	}
	collection.BaseURI = baseURI
	if err := r.st.KVPut(collectionKey(addr), collection); err != nil {
		return err
	}
	emit(r.emitter, collectionEvent(EventTypeBaseURIUpdated, addr, map[string]string{"baseUri": baseURI}))
	return nil
}

// Pause halts transfers on the collection.
func (r *Registry) Pause(caller, addr common.Address) error {
	collection, err := r.ownedCollection(caller, addr)
	if err != nil {
		return err
	}
	if collection.Paused {
		return ErrPaused
	}
	collection.Paused = true
	if err := r.st.KVPut(collectionKey(addr), collection); err != nil {
		return err
	}
	emit(r.emitter, collectionEvent(EventTypePaused, addr, nil))
	return nil
}

// Unpause resumes transfers on the collection.
func (r *Registry) Unpause(caller, addr common.Address) error {
	collection, err := r.ownedCollection(caller, addr)
	if err != nil {
		return err
	}
	if !collection.Paused {
		return ErrNotPaused
	}
	collection.Paused = false
	if err := r.st.KVPut(collectionKey(addr), collection); err != nil {
		return err
	}
	emit(r.emitter, collectionEvent(EventTypeUnpaused, addr, nil))
	return nil
}

// Mint issues tokenID to the recipient. Only the collection minter or owner may mint.
func (r *Registry) Mint(caller, addr, to common.Address, tokenID uint64) error {
	return r.MintBatch(caller, addr, to, []uint64{tokenID})
}

// MintBatch issues every id in tokenIDs to the recipient.
func (r *Registry) MintBatch(caller, addr, to common.Address, tokenIDs []uint64) error {
	if r == nil || r.st == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if len(tokenIDs) == 0 {
		return ErrEmptyBatch
	}
	if nativecommon.IsZeroAddress(to) {
		return ErrZeroAddress
	}
	collection, err := r.Collection(addr)
	if err != nil {
		return err
	}
	if caller != collection.Minter && caller != collection.Owner {
		return ErrUnauthorized
	}
	return nativecommon.Atomic(r.st, func() error {
		for _, id := range tokenIDs {
			exists, err := r.st.KVGet(tokenKey(addr, id), nil)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %d", ErrTokenExists, id)
			}
			if err := r.appendOwned(addr, to, id); err != nil {
				return err
			}
			collection.TotalSupply++
			emit(r.emitter, TransferEvent(addr, common.Address{}, to, id))
		}
		return r.st.KVPut(collectionKey(addr), collection)
	})
}

func (r *Registry) appendOwned(addr, owner common.Address, id uint64) error {
	var owned []uint64
	if err := r.st.KVGetList(ownedListKey(addr, owner), &owned); err != nil {
		return err
	}
	token := &Token{Collection: addr, ID: id, Owner: owner, OwnerIndex: uint64(len(owned))}
	owned = append(owned, id)
	if err := r.st.KVPut(ownedListKey(addr, owner), owned); err != nil {
		return err
	}
	return r.st.KVPut(tokenKey(addr, id), token)
}

func (r *Registry) removeOwned(token *Token) error {
	var owned []uint64
	if err := r.st.KVGetList(ownedListKey(token.Collection, token.Owner), &owned); err != nil {
		return err
	}
	idx := token.OwnerIndex
	if idx >= uint64(len(owned)) || owned[idx] != token.ID {
		return fmt.Errorf("nft: ownership index corrupted for token %d", token.ID)
	}
	last := uint64(len(owned) - 1)
	if idx != last {
		moved := owned[last]
		owned[idx] = moved
		movedToken := new(Token)
		if _, err := r.st.KVGet(tokenKey(token.Collection, moved), movedToken); err != nil {
			return err
		}
		movedToken.OwnerIndex = idx
		if err := r.st.KVPut(tokenKey(token.Collection, moved), movedToken); err != nil {
			return err
		}
	}
	owned = owned[:last]
	return r.st.KVPut(ownedListKey(token.Collection, token.Owner), owned)
}

// Transfer moves tokenID from its owner to the recipient. Only the current
// owner may move a token and paused collections reject transfers.
func (r *Registry) Transfer(caller, addr, from, to common.Address, tokenID uint64) error {
	if r == nil || r.st == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(to) {
		return ErrZeroAddress
	}
	collection, err := r.Collection(addr)
	if err != nil {
		return err
	}
	if collection.Paused {
		return ErrPaused
	}
	token, err := r.token(addr, tokenID)
	if err != nil {
		return err
	}
	if token.Owner != from {
		return ErrNotTokenOwner
	}
	if caller != from {
		return ErrUnauthorized
	}
	return nativecommon.Atomic(r.st, func() error {
		if err := r.removeOwned(token); err != nil {
			return err
		}
		if err := r.appendOwned(addr, to, tokenID); err != nil {
			return err
		}
		emit(r.emitter, TransferEvent(addr, from, to, tokenID))
		return nil
	})
}

func (r *Registry) token(addr common.Address, id uint64) (*Token, error) {
	token := new(Token)
	ok, err := r.st.KVGet(tokenKey(addr, id), token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTokenNotFound, id)
	}
	return token, nil
}

// OwnerOf returns the owner of tokenID.
func (r *Registry) OwnerOf(addr common.Address, tokenID uint64) (common.Address, error) {
	if r == nil || r.st == nil {
		return common.Address{}, ErrNilState
	}
	token, err := r.token(addr, tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return token.Owner, nil
}

// BalanceOf returns how many tokens owner holds in the collection.
func (r *Registry) BalanceOf(addr, owner common.Address) (uint64, error) {
	if r == nil || r.st == nil {
		return 0, ErrNilState
	}
	var owned []uint64
	if err := r.st.KVGetList(ownedListKey(addr, owner), &owned); err != nil {
		return 0, err
	}
	return uint64(len(owned)), nil
}

// TokenOfOwnerByIndex enumerates the tokens held by owner.
func (r *Registry) TokenOfOwnerByIndex(addr, owner common.Address, index uint64) (uint64, error) {
	var owned []uint64
	if err := r.st.KVGetList(ownedListKey(addr, owner), &owned); err != nil {
		return 0, err
	}
	if index >= uint64(len(owned)) {
		return 0, ErrIndexOutOfBounds
	}
	return owned[index], nil
}

// TotalSupply returns the number of minted tokens.
func (r *Registry) TotalSupply(addr common.Address) (uint64, error) {
	collection, err := r.Collection(addr)
	if err != nil {
		return 0, err
	}
	return collection.TotalSupply, nil
}

// TokenURI concatenates the base URI with the decimal token id. An empty base
// URI yields an empty string.
func (r *Registry) TokenURI(addr common.Address, tokenID uint64) (string, error) {
	collection, err := r.Collection(addr)
	if err != nil {
		return "", err
	}
	if _, err := r.token(addr, tokenID); err != nil {
		return "", err
	}
	if collection.BaseURI == "" {
		return "", nil
	}
	return collection.BaseURI + strconv.FormatUint(tokenID, 10), nil
}
