package nft

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"zizyhub/core/events"
	"zizyhub/core/types"
)

const (
	// EventTypeCollectionDeployed is emitted when a ticket or collectible ledger is deployed.
	EventTypeCollectionDeployed = "nft.collection.deployed"
	// EventTypeMinterUpdated is emitted when a collection minter changes.
	EventTypeMinterUpdated = "nft.collection.minter_updated"
	// EventTypeBaseURIUpdated is emitted when the metadata base URI changes.
	EventTypeBaseURIUpdated = "nft.collection.base_uri_updated"
	// EventTypePaused is emitted when transfers are paused.
	EventTypePaused = "nft.collection.paused"
	// EventTypeUnpaused is emitted when transfers resume.
	EventTypeUnpaused = "nft.collection.unpaused"
	// EventTypeTransfer covers mints (from zero) and transfers.
	EventTypeTransfer = "nft.token.transfer"
)

func emit(emitter events.Emitter, evt *types.Event) {
	if emitter == nil || evt == nil {
		return
	}
	emitter.Emit(events.Wrap(evt))
}

// CollectionDeployedEvent announces a new collection.
func CollectionDeployedEvent(c *Collection) *types.Event {
	return &types.Event{
		Type: EventTypeCollectionDeployed,
		Attributes: map[string]string{
			"collection": c.Address.Hex(),
			"owner":      c.Owner.Hex(),
			"name":       c.Name,
			"symbol":     c.Symbol,
		},
	}
}

func collectionEvent(kind string, collection common.Address, attrs map[string]string) *types.Event {
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrs["collection"] = collection.Hex()
	return &types.Event{Type: kind, Attributes: attrs}
}

// TransferEvent records a mint or transfer.
func TransferEvent(collection, from, to common.Address, id uint64) *types.Event {
	return collectionEvent(EventTypeTransfer, collection, map[string]string{
		"from":    from.Hex(),
		"to":      to.Hex(),
		"tokenId": strconv.FormatUint(id, 10),
	})
}
