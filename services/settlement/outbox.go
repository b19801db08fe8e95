package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jonboulle/clockwork"

	"zizyhub/core/events"
	nativecommon "zizyhub/native/common"
	"zizyhub/native/rewardhub"
	"zizyhub/native/stakerewards"
)

// ErrAlreadySettled is returned when retrying a job that already settled.
var ErrAlreadySettled = errors.New("settlement: job already settled")

// crossChainEvents lists the claim events that produce settlement jobs, with
// the attributes identifying the claim beyond account and reward id.
var crossChainEvents = map[string][]string{
	rewardhub.EventTypeCompetitionClaimedCrossChain: {"ticket", "ticketId"},
	rewardhub.EventTypeAirdropClaimedCrossChain:     {"campaignId", "index"},
	stakerewards.EventTypeRewardClaimedCrossChain:   {"vestingIndex"},
}

// IsCrossChainClaim reports whether eventType produces a settlement job.
func IsCrossChainClaim(eventType string) bool {
	_, ok := crossChainEvents[eventType]
	return ok
}

// JobFromRecord converts a cross-chain claim record into a pending job.
func JobFromRecord(rec events.Record) (*Job, error) {
	if rec.Event == nil {
		return nil, fmt.Errorf("settlement: record %d has no payload", rec.Seq)
	}
	refs, ok := crossChainEvents[rec.Event.Type]
	if !ok {
		return nil, fmt.Errorf("settlement: event %q is not a cross-chain claim", rec.Event.Type)
	}
	attrs := rec.Event.Attributes
	chainID, err := strconv.ParseUint(attrs["chainId"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("settlement: chainId: %w", err)
	}
	rewardID, err := strconv.ParseUint(attrs["rewardId"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("settlement: rewardId: %w", err)
	}
	var tokenID uint64
	if raw := attrs["tokenId"]; raw != "" {
		if tokenID, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("settlement: tokenId: %w", err)
		}
	}
	amount := attrs["amount"]
	if amount == "" {
		amount = "0"
	}
	if _, ok := new(big.Int).SetString(amount, 10); !ok {
		return nil, fmt.Errorf("settlement: invalid amount %q", amount)
	}
	parts := make([]string, 0, len(refs))
	for _, key := range refs {
		parts = append(parts, key+"="+attrs[key])
	}
	reference := strings.Join(parts, ";")
	return &Job{
		EventKey:      eventKey(rec.Event.Type, attrs["account"], attrs["rewardId"], reference),
		EventType:     rec.Event.Type,
		EventSeq:      rec.Seq,
		Account:       attrs["account"],
		ChainID:       chainID,
		RewardID:      rewardID,
		RewardType:    attrs["rewardType"],
		RewardAddress: attrs["rewardAddress"],
		Amount:        amount,
		TokenID:       tokenID,
		Reference:     reference,
		Status:        StatusPending,
	}, nil
}

// eventKey identifies a claim independently of the stream position, so
// replaying the event history never enqueues a claim twice.
func eventKey(parts ...string) string {
	return crypto.Keccak256Hash([]byte(strings.Join(parts, "|"))).Hex()
}

// ClaimSource is the node surface the outbox drains. Staged records are the
// source of truth; committed events only wake the writer early.
type ClaimSource interface {
	Subscribe(after uint64, buffer int) (<-chan events.Record, []events.Record, func())
	PendingSettlements() ([]nativecommon.SettlementRecord, error)
	AckSettlements(ids []uint64) error
}

const (
	defaultOutboxPoll        = 5 * time.Second
	defaultOutboxBackoffBase = time.Second
	defaultOutboxBackoffMax  = time.Minute
)

// OutboxWriter persists staged cross-chain claims as settlement jobs and
// acknowledges them on the node once stored.
type OutboxWriter struct {
	store       *Store
	source      ClaimSource
	logger      *slog.Logger
	clock       clockwork.Clock
	poll        time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
}

// OutboxOption customises an OutboxWriter.
type OutboxOption func(*OutboxWriter)

// WithOutboxClock drives polling and backoff timers from clock.
func WithOutboxClock(clock clockwork.Clock) OutboxOption {
	return func(w *OutboxWriter) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithOutboxPollInterval sets how often the outbox is drained without a wake-up.
func WithOutboxPollInterval(d time.Duration) OutboxOption {
	return func(w *OutboxWriter) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithOutboxBackoff bounds the retry delay after a failed drain.
func WithOutboxBackoff(base, max time.Duration) OutboxOption {
	return func(w *OutboxWriter) {
		if base > 0 {
			w.backoffBase = base
		}
		if max >= w.backoffBase {
			w.backoffMax = max
		}
	}
}

func NewOutboxWriter(store *Store, source ClaimSource, logger *slog.Logger, opts ...OutboxOption) *OutboxWriter {
	if logger == nil {
		logger = slog.Default()
	}
	w := &OutboxWriter{
		store:       store,
		source:      source,
		logger:      logger.With(slog.String("component", "outbox")),
		clock:       clockwork.NewRealClock(),
		poll:        defaultOutboxPoll,
		backoffBase: defaultOutboxBackoffBase,
		backoffMax:  defaultOutboxBackoffMax,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the outbox at startup, on every cross-chain claim event and on
// each poll tick until ctx ends. Failed drains are retried with backoff.
func (w *OutboxWriter) Run(ctx context.Context) error {
	// Only live events matter; they are wake-ups, not the data.
	updates, _, cancel := w.source.Subscribe(math.MaxUint64, 64)
	defer cancel()
	timer := w.clock.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if failures > 0 || rec.Event == nil || !IsCrossChainClaim(rec.Event.Type) {
				continue
			}
			if _, err := w.Drain(ctx); err != nil {
				failures++
				w.logDrainFailure(ctx, err, failures)
			}
			continue
		case <-timer.Chan():
		}
		wait := w.poll
		if _, err := w.Drain(ctx); err != nil {
			failures++
			wait = w.backoff(failures)
			w.logDrainFailure(ctx, err, failures)
		} else {
			failures = 0
		}
		timer.Reset(wait)
	}
}

func (w *OutboxWriter) logDrainFailure(ctx context.Context, err error, failures int) {
	if ctx.Err() != nil {
		return
	}
	w.logger.Error("outbox drain failed",
		slog.Int("failures", failures),
		slog.Any("error", err))
}

func (w *OutboxWriter) backoff(failures int) time.Duration {
	delay := w.backoffBase
	for i := 1; i < failures && delay < w.backoffMax; i++ {
		delay *= 2
	}
	if delay > w.backoffMax {
		delay = w.backoffMax
	}
	return delay
}

// Drain copies every staged claim into the store and acknowledges those
// persisted. It stops at the first store failure; unacknowledged records stay
// staged for the next drain. It returns the number acknowledged.
func (w *OutboxWriter) Drain(ctx context.Context) (int, error) {
	pending, err := w.source.PendingSettlements()
	if err != nil {
		return 0, fmt.Errorf("settlement: read outbox: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	acked := make([]uint64, 0, len(pending))
	var handleErr error
	for _, rec := range pending {
		if err := w.Handle(ctx, events.Record{Seq: rec.ID, Event: rec.Event()}); err != nil {
			handleErr = err
			break
		}
		acked = append(acked, rec.ID)
	}
	if err := w.source.AckSettlements(acked); err != nil {
		return 0, errors.Join(handleErr, fmt.Errorf("settlement: ack outbox: %w", err))
	}
	if len(acked) > 0 {
		w.logger.Debug("outbox drained", slog.Int("acked", len(acked)), slog.Int("staged", len(pending)))
	}
	return len(acked), handleErr
}

// Handle enqueues rec when it is a cross-chain claim. Malformed claims are
// logged and skipped; store failures are returned.
func (w *OutboxWriter) Handle(ctx context.Context, rec events.Record) error {
	if rec.Event == nil || !IsCrossChainClaim(rec.Event.Type) {
		return nil
	}
	job, err := JobFromRecord(rec)
	if err != nil {
		w.logger.Error("skipping malformed claim event", slog.Uint64("seq", rec.Seq), slog.Any("error", err))
		return nil
	}
	inserted, err := w.store.Enqueue(ctx, job)
	if err != nil {
		return fmt.Errorf("settlement: enqueue: %w", err)
	}
	if inserted {
		w.logger.Info("settlement job enqueued",
			slog.String("jobid", job.ID.String()),
			slog.Uint64("chainid", job.ChainID),
			slog.Uint64("rewardid", job.RewardID))
	}
	return nil
}
