// Package retry runs an operation repeatedly with exponential backoff until it
// succeeds, the attempt budget runs out, or the context is cancelled.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy controls how many times an operation is tried and how long to wait
// between tries.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Base is the wait before the second try.
	Base time.Duration
	// Cap bounds any single wait.
	Cap time.Duration
	// Factor multiplies the wait after each failed try.
	Factor float64
}

// Default returns a policy suited to transient filesystem and network errors.
func Default() Policy {
	return Policy{
		Attempts: 5,
		Base:     time.Second,
		Cap:      30 * time.Second,
		Factor:   2.0,
	}
}

// Do invokes op until it returns nil or the policy is exhausted. The last
// error is returned when every try fails; a cancelled context returns
// ctx.Err() immediately.
func Do(ctx context.Context, p Policy, op func() error) error {
	wait := p.Base
	var err error

	for try := 0; try < p.Attempts; try++ {
		if err = op(); err == nil {
			return nil
		}
		if try == p.Attempts-1 {
			break
		}

		timer := time.NewTimer(jitter(wait))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		wait = time.Duration(float64(wait) * p.Factor)
		if wait > p.Cap {
			wait = p.Cap
		}
	}

	return err
}

// jitter spreads a wait uniformly across [d/2, d) so that retries triggered by
// the same event do not fire in lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)))
}
