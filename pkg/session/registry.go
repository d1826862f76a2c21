package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"gearshop/pkg/metrics"
)

var (
	// ErrSuperseded is the cancellation cause of a call replaced by a newer one.
	ErrSuperseded = errors.New("superseded by a newer query")
	// ErrExpired is the cancellation cause of a call that outlived the TTL.
	ErrExpired = errors.New("session call exceeded its time limit")
)

type entry struct {
	seq    uint64
	cancel context.CancelCauseFunc
	timer  *time.Timer
}

// Registry tracks the in-flight assistant call of every session so that a
// new query wins over an older one still running. Entries are removed on
// Release or after ttl, whichever comes first. The ttl bounds how long a
// single call may run; an expired call is cancelled with ErrExpired.
type Registry struct {
	mu   sync.Mutex
	data map[string]*entry
	seq  uint64
	ttl  time.Duration
	reg  *metrics.Registry
}

// NewRegistry creates an empty registry. A non-positive ttl disables expiry.
func NewRegistry(ttl time.Duration, reg *metrics.Registry) *Registry {
	return &Registry{data: make(map[string]*entry), ttl: ttl, reg: reg}
}

// Ticket identifies one call registered with Begin.
type Ticket struct {
	r   *Registry
	id  string
	seq uint64
	ctx context.Context
}

// Begin registers a new call for session id and cancels the previous one.
// The returned context is cancelled when the call is superseded, released
// or expired.
func (r *Registry) Begin(ctx context.Context, id string) (context.Context, *Ticket) {
	callCtx, cancel := context.WithCancelCause(ctx)

	r.mu.Lock()
	r.seq++
	seq := r.seq
	prev := r.data[id]
	e := &entry{seq: seq, cancel: cancel}
	if r.ttl > 0 {
		e.timer = time.AfterFunc(r.ttl, func() { r.expire(id, seq) })
	}
	r.data[id] = e
	r.mu.Unlock()

	if prev != nil {
		if prev.timer != nil {
			prev.timer.Stop()
		}
		prev.cancel(ErrSuperseded)
		log.Ctx(ctx).Debug().Str("session_id", id).Msg("previous query superseded")
		r.reg.Inc(ctx, metrics.SessionsSuperseded, nil, 1)
	}

	return callCtx, &Ticket{r: r, id: id, seq: seq, ctx: callCtx}
}

// Current reports whether t is still the latest call of its session.
func (t *Ticket) Current() bool {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	e, ok := t.r.data[t.id]
	return ok && e.seq == t.seq
}

// Superseded reports whether a newer call replaced t.
func (t *Ticket) Superseded() bool {
	return errors.Is(context.Cause(t.ctx), ErrSuperseded)
}

// Expired reports whether t was cancelled by the TTL.
func (t *Ticket) Expired() bool {
	return errors.Is(context.Cause(t.ctx), ErrExpired)
}

// Release frees the session slot if t still owns it and cancels t's
// context. Calling it more than once is harmless.
func (t *Ticket) Release() {
	t.r.remove(t.id, t.seq, nil)
}

// Len returns the number of sessions with a call in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

func (r *Registry) expire(id string, seq uint64) {
	if r.remove(id, seq, ErrExpired) {
		log.Debug().Str("session_id", id).Msg("session expired")
		r.reg.Inc(context.Background(), metrics.SessionsExpired, nil, 1)
	}
}

// remove deletes the entry when seq still owns it and reports whether it
// did.
func (r *Registry) remove(id string, seq uint64, cause error) bool {
	r.mu.Lock()
	e, ok := r.data[id]
	if ok && e.seq == seq {
		delete(r.data, id)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.cancel(cause)
	return true
}
