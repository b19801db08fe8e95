package common

import (
	"errors"
	"testing"
)

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerWindow: 10, WindowSeconds: 60}
	prev := QuotaNow{WindowID: 1}

	next, err := CheckQuota(q, 1, prev, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReqCount != 10 {
		t.Fatalf("unexpected request count: %d", next.ReqCount)
	}

	denied, err := CheckQuota(q, 1, next, 1)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1)
	if err != nil {
		t.Fatalf("unexpected error after window rollover: %v", err)
	}
	if rollover.WindowID != 2 || rollover.ReqCount != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestQuotaWindow(t *testing.T) {
	q := Quota{WindowSeconds: 60}
	if got := q.Window(119); got != 1 {
		t.Fatalf("expected window 1, got %d", got)
	}
	if got := (Quota{}).Window(500); got != 0 {
		t.Fatalf("expected zero window without size, got %d", got)
	}
}

func TestCheckQuotaOverflow(t *testing.T) {
	prev := QuotaNow{ReqCount: ^uint32(0), WindowID: 3}
	if _, err := CheckQuota(Quota{}, 3, prev, 1); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
