package access

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/taproom-client/apierror"
	"github.com/jrsteele09/taproom-client/sessions"
)

// SessionSource returns the stored session, or nil when there is none.
type SessionSource interface {
	Current(ctx context.Context) (*sessions.Record, error)
}

// Refresher obtains a new session when none is stored, typically by auto-login.
type Refresher interface {
	Refresh(ctx context.Context) (*sessions.Record, error)
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) (*sessions.Record, error)

func (f RefreshFunc) Refresh(ctx context.Context) (*sessions.Record, error) {
	return f(ctx)
}

type acquireState int

const (
	stateAbsent acquireState = iota
	stateAcquiring
	stateHeld
)

func (s acquireState) String() string {
	switch s {
	case stateAcquiring:
		return "acquiring"
	case stateHeld:
		return "held"
	}
	return "absent"
}

// acquisition is one in-flight attempt to obtain a session. Every caller that
// arrives while it runs waits on done and receives the same result.
type acquisition struct {
	done    chan struct{}
	waiters int
	record  *sessions.Record
	err     *apierror.Error
}

// acquirer moves between absent, acquiring and held. At most one acquisition
// runs at a time; a failure returns to absent so the next caller starts fresh.
type acquirer struct {
	mu         sync.Mutex
	state      acquireState
	held       *sessions.Record
	pending    *acquisition
	generation uint64
	// rejected is the session id the server last answered 401 for. The store
	// may still hold that record, so it is not reused.
	rejected string

	source    SessionSource
	refresher Refresher
	timeout   time.Duration
	metrics   *Metrics
	logger    zerolog.Logger
}

func (a *acquirer) acquire(ctx context.Context) (*sessions.Record, *apierror.Error) {
	a.mu.Lock()
	switch a.state {
	case stateHeld:
		record := a.held
		a.mu.Unlock()
		a.metrics.SessionAcquisitions.WithLabelValues("held").Inc()
		return record, nil
	case stateAcquiring:
		pending := a.pending
		pending.waiters++
		a.mu.Unlock()
		a.metrics.SessionAcquisitions.WithLabelValues("shared").Inc()
		return a.wait(ctx, pending)
	}

	pending := &acquisition{done: make(chan struct{}), waiters: 1}
	a.state = stateAcquiring
	a.pending = pending
	generation, rejected := a.generation, a.rejected
	a.mu.Unlock()

	// The first caller's cancellation must not fail the callers sharing this acquisition.
	go a.run(context.WithoutCancel(ctx), pending, generation, rejected)
	return a.wait(ctx, pending)
}

func (a *acquirer) wait(ctx context.Context, pending *acquisition) (*sessions.Record, *apierror.Error) {
	select {
	case <-pending.done:
		return pending.record, pending.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apierror.Timeout("")
		}
		return nil, apierror.Network(ctx.Err())
	}
}

func (a *acquirer) run(ctx context.Context, pending *acquisition, generation uint64, rejected string) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	record, result, apiErr := a.resolve(ctx, rejected)
	a.metrics.SessionAcquisitions.WithLabelValues(result).Inc()

	a.mu.Lock()
	defer a.mu.Unlock()
	// A login or logout that happened meanwhile owns the state now.
	if a.generation == generation {
		a.pending = nil
		if apiErr != nil {
			a.state, a.held = stateAbsent, nil
		} else {
			a.state, a.held = stateHeld, record
		}
	}
	pending.record, pending.err = record, apiErr
	close(pending.done)
	if apiErr != nil {
		a.logger.Debug().Int("waiters", pending.waiters).Str("kind", string(apiErr.Kind())).Msg("session acquisition failed")
	}
}

func (a *acquirer) resolve(ctx context.Context, rejected string) (*sessions.Record, string, *apierror.Error) {
	record, err := a.source.Current(ctx)
	if err != nil {
		return nil, "failed", apierror.Wrap(err)
	}
	if record != nil && (rejected == "" || record.SessionID != rejected) {
		return record, "stored", nil
	}
	if record != nil {
		a.logger.Debug().Msg("stored session was rejected by server, renewing")
	}
	if a.refresher == nil {
		return nil, "failed", apierror.Unauthenticated("")
	}
	record, err = a.refresher.Refresh(ctx)
	if err != nil {
		return nil, "failed", apierror.Wrap(err)
	}
	if record = sessions.Validate(record); record == nil {
		return nil, "failed", apierror.Unauthenticated("")
	}
	return record, "refreshed", nil
}

// set replaces the held session after a login (record) or logout (nil).
func (a *acquirer) set(record *sessions.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generation++
	a.pending = nil
	if record = sessions.Validate(record); record != nil {
		a.state, a.held = stateHeld, record
		return
	}
	a.state, a.held = stateAbsent, nil
}

// invalidate drops the held session if it is still the one the server rejected.
func (a *acquirer) invalidate(rejected *sessions.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != stateHeld || a.held == nil || rejected == nil || a.held.SessionID != rejected.SessionID {
		return
	}
	a.generation++
	a.state, a.held = stateAbsent, nil
	a.rejected = rejected.SessionID
	a.logger.Info().Msg("session rejected by server, dropping held session")
}

func (a *acquirer) snapshot() (acquireState, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return a.state, 0
	}
	return a.state, a.pending.waiters
}
