package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current usage counters for an address.
type QuotaNow struct {
	ReqCount uint32
	WindowID uint64
}

// Quota defines the number of mutating operations an address may submit per window.
type Quota struct {
	MaxRequestsPerWindow uint32
	WindowSeconds        uint32
}

// Window maps a unix timestamp to the quota window it falls in.
func (q Quota) Window(unix int64) uint64 {
	if q.WindowSeconds == 0 || unix < 0 {
		return 0
	}
	return uint64(unix) / uint64(q.WindowSeconds)
}

// CheckQuota verifies whether addReq more requests fit within the quota. The
// returned QuotaNow reflects the updated counters when the quota is not exceeded.
func CheckQuota(q Quota, nowWindow uint64, prev QuotaNow, addReq uint32) (QuotaNow, error) {
	next := prev
	if prev.WindowID != nowWindow {
		next = QuotaNow{WindowID: nowWindow}
	}
	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerWindow > 0 && next.ReqCount > q.MaxRequestsPerWindow {
		return prev, ErrQuotaRequestsExceeded
	}
	return next, nil
}
