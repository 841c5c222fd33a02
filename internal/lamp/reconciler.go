package lamp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/danmuck/lampd/internal/feed"
	"github.com/danmuck/lampd/internal/observability"
	"github.com/danmuck/lampd/internal/store"
	"github.com/rs/zerolog"
)

// NoticeUnableToProcess is the generic user-facing failure message. No
// structured error detail crosses the view boundary.
const NoticeUnableToProcess = "Unable to process request"

const (
	resultTransition = "transition"
	resultDuplicate  = "duplicate"

	outcomeSuccess     = "success"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
	outcomeFailure     = "failure"
)

// Gateway is the persistence boundary the reconciler commits through.
type Gateway interface {
	History(ctx context.Context) ([]store.Record, error)
	Commit(ctx context.Context, next bool) (store.Record, error)
}

// Notifier receives user-facing failure messages.
type Notifier interface {
	Notify(message string)
}

// Reconciler owns the authoritative lamp status. It ingests feed
// payloads one at a time, commits exactly the genuine transitions, and
// refreshes the history mirror after each successful commit. All
// processing happens on the single Run goroutine: a payload arriving
// while a commit is in flight waits in the queue and is evaluated
// against the post-resolution status, so no two commits ever overlap.
type Reconciler struct {
	gateway  Gateway
	history  *History
	notifier Notifier
	log      zerolog.Logger

	mu     sync.RWMutex
	status bool

	events chan string
}

func NewReconciler(gateway Gateway, history *History, notifier Notifier, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		gateway:  gateway,
		history:  history,
		notifier: notifier,
		log:      logger,
		events:   make(chan string, 64),
	}
}

// Status reports the authoritative status: the status of the most
// recently persisted record, or false before any record exists.
func (r *Reconciler) Status() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Reconciler) setStatus(status bool) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

// Submit queues one raw feed payload for processing. Submissions are
// processed in arrival order; the call blocks only if the queue is full,
// which preserves ordering under bursts.
func (r *Reconciler) Submit(payload string) {
	r.events <- payload
}

// Run seeds the authoritative status from the persisted history, then
// processes queued payloads until the context is canceled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.bootstrap(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-r.events:
			r.process(ctx, payload)
		}
	}
}

// bootstrap corrects the default OFF status from the latest persisted
// record. An empty history is valid and keeps the default without a
// notification; a failed fetch keeps the default and raises one.
func (r *Reconciler) bootstrap(ctx context.Context) {
	records, err := r.gateway.History(ctx)
	if err != nil {
		observability.RecordHistoryRefresh(outcomeFailure)
		r.log.Warn().Err(err).Msg("startup history fetch failed")
		r.notifier.Notify(NoticeUnableToProcess)
		return
	}
	observability.RecordHistoryRefresh(outcomeSuccess)
	r.history.Replace(records)
	if latest, ok := LatestRecord(records); ok {
		r.setStatus(latest.Status)
	}
	r.log.Info().
		Bool("status", r.Status()).
		Int("records", len(records)).
		Msg("reconciler seeded from history")
}

func (r *Reconciler) process(ctx context.Context, payload string) {
	next := feed.StatusFromPayload(payload)
	current := r.Status()
	if next == current {
		observability.RecordFeedNotification(resultDuplicate)
		r.log.Debug().
			Str("payload", payload).
			Bool("status", current).
			Msg("notification matches current status, ignored")
		return
	}
	observability.RecordFeedNotification(resultTransition)

	start := time.Now()
	if _, err := r.gateway.Commit(ctx, next); err != nil {
		observability.RecordCommit(commitOutcome(err), time.Since(start))
		r.log.Warn().
			Err(err).
			Bool("pending", next).
			Bool("status", current).
			Msg("commit failed, status unchanged")
		r.notifier.Notify(NoticeUnableToProcess)
		return
	}
	observability.RecordCommit(outcomeSuccess, time.Since(start))

	r.setStatus(next)
	r.log.Info().Bool("status", next).Msg("transition committed")
	r.refresh(ctx)
}

// refresh replaces the history mirror from the gateway. A refresh
// failure leaves the mirror stale but the authoritative status correct;
// the mirror is re-derivable on the next refresh.
func (r *Reconciler) refresh(ctx context.Context) {
	records, err := r.gateway.History(ctx)
	if err != nil {
		observability.RecordHistoryRefresh(outcomeFailure)
		r.log.Warn().Err(err).Msg("history refresh failed")
		r.notifier.Notify(NoticeUnableToProcess)
		return
	}
	observability.RecordHistoryRefresh(outcomeSuccess)
	r.history.Replace(records)
}

func commitOutcome(err error) string {
	switch {
	case errors.Is(err, store.ErrRejected):
		return outcomeRejected
	case errors.Is(err, store.ErrUnavailable):
		return outcomeUnavailable
	default:
		return outcomeFailure
	}
}
