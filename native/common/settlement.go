package common

import (
	"fmt"
	"sort"

	"zizyhub/core/types"
)

var (
	settlementOutboxKey = []byte("settlement/outbox")
	settlementNonceKey  = []byte("settlement/outbox/nonce")
)

// SettlementState is the state surface the settlement outbox is kept in.
type SettlementState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVGetList(key []byte, out interface{}) error
}

// SettlementAttribute is one event attribute in RLP-friendly form.
type SettlementAttribute struct {
	Key   string
	Value string
}

// SettlementRecord is a cross-chain claim awaiting pickup by the settlement
// worker. Records are written in the same commit that marks the claim, and
// stay until acknowledged.
type SettlementRecord struct {
	ID         uint64
	Type       string
	Attributes []SettlementAttribute
}

// Event renders the record as the claim event it was staged with.
func (r SettlementRecord) Event() *types.Event {
	attrs := make(map[string]string, len(r.Attributes))
	for _, a := range r.Attributes {
		attrs[a.Key] = a.Value
	}
	return &types.Event{Type: r.Type, Attributes: attrs}
}

// StageSettlement appends a cross-chain claim to the outbox and returns its id.
func StageSettlement(state SettlementState, kind string, attrs map[string]string) (uint64, error) {
	if state == nil {
		return 0, fmt.Errorf("settlement outbox: state not configured")
	}
	var nonce uint64
	if _, err := state.KVGet(settlementNonceKey, &nonce); err != nil {
		return 0, err
	}
	nonce++
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rec := SettlementRecord{ID: nonce, Type: kind, Attributes: make([]SettlementAttribute, 0, len(keys))}
	for _, k := range keys {
		rec.Attributes = append(rec.Attributes, SettlementAttribute{Key: k, Value: attrs[k]})
	}
	pending, err := PendingSettlements(state)
	if err != nil {
		return 0, err
	}
	pending = append(pending, rec)
	if err := state.KVPut(settlementOutboxKey, pending); err != nil {
		return 0, err
	}
	if err := state.KVPut(settlementNonceKey, nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// PendingSettlements lists staged records in id order.
func PendingSettlements(state SettlementState) ([]SettlementRecord, error) {
	var pending []SettlementRecord
	if err := state.KVGetList(settlementOutboxKey, &pending); err != nil {
		return nil, fmt.Errorf("settlement outbox: %w", err)
	}
	return pending, nil
}

// AckSettlements removes the records with the given ids and reports how many
// were removed. Unknown ids are ignored.
func AckSettlements(state SettlementState, ids []uint64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	acked := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		acked[id] = struct{}{}
	}
	pending, err := PendingSettlements(state)
	if err != nil {
		return 0, err
	}
	kept := pending[:0]
	for _, rec := range pending {
		if _, ok := acked[rec.ID]; ok {
			continue
		}
		kept = append(kept, rec)
	}
	removed := len(pending) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := state.KVPut(settlementOutboxKey, kept); err != nil {
		return 0, err
	}
	return removed, nil
}
