// Package timeoutpolicy holds the per-phase durations and attempt counts
// that bracket connect and request-handling phases, and composes a final
// error once retries are exhausted.
package timeoutpolicy

import (
	"strconv"
	"time"

	"github.com/corvaxnet/rawhttp/pkg/errors"
)

// Policy holds the connect and handle timeout/retry budgets for one
// controller.
type Policy struct {
	// ConnectTimeout brackets a single connect attempt (TCP dial, optional
	// proxy handshake, optional TLS handshake).
	ConnectTimeout time.Duration
	// ConnectTimes is the maximum number of connect attempts before giving up.
	ConnectTimes int
	// HandleTimeout brackets a single send+receive cycle.
	HandleTimeout time.Duration
	// HandleTimes is the maximum number of send+receive attempts before
	// giving up.
	HandleTimes int
}

// Default returns the budgets applied when the caller never calls
// SetTimeout: a 10s connect timeout and a 30s handle timeout, with up to 3
// attempts for each phase.
func Default() Policy {
	return Policy{
		ConnectTimeout: 10 * time.Second,
		ConnectTimes:   3,
		HandleTimeout:  30 * time.Second,
		HandleTimes:    3,
	}
}

// Attempt tracks progress through a bracketed retry loop for one phase.
type Attempt struct {
	phase    string
	budget   time.Duration
	maxTries int
	tries    int
	lastErr  error
}

// NewConnectAttempt starts tracking the connect phase.
func (p Policy) NewConnectAttempt() *Attempt {
	return &Attempt{phase: "connect", budget: p.ConnectTimeout, maxTries: max1(p.ConnectTimes)}
}

// NewHandleAttempt starts tracking the handle (send/receive) phase.
func (p Policy) NewHandleAttempt() *Attempt {
	return &Attempt{phase: "handle", budget: p.HandleTimeout, maxTries: max1(p.HandleTimes)}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Budget returns the duration to bracket the next attempt with.
func (a *Attempt) Budget() time.Duration { return a.budget }

// Fail records a failed attempt and reports whether another attempt remains.
func (a *Attempt) Fail(err error) (retry bool) {
	a.tries++
	a.lastErr = err
	return a.tries < a.maxTries
}

// Exhausted composes the final timeout error after the last retry failed,
// folding in the last underlying cause.
func (a *Attempt) Exhausted() error {
	e := errors.NewTimeoutError(a.phase+" timeout", a.budget)
	e.Cause = a.lastErr
	e.Message = e.Message + " after " + strconv.Itoa(a.tries) + " attempt(s)"
	return e
}
