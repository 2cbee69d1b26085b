package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultRestartBackoff = time.Second
	maxRestartBackoff     = 5 * time.Minute
	calmPeriod            = 5 * time.Minute
)

// Supervisor restarts a failing run function with doubling backoff. After a
// calm period without restarts the backoff resets to its initial value.
type Supervisor struct {
	// Run is the supervised function. It is expected to only return on
	// error or context cancellation.
	Run func(ctx context.Context) error

	// sleep and now exist as test seams.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewSupervisor wraps run.
func NewSupervisor(run func(ctx context.Context) error) *Supervisor {
	return &Supervisor{
		Run:   run,
		sleep: sleepContext,
		now:   time.Now,
	}
}

// Supervise runs the supervised function until the context is cancelled,
// restarting it after each failure. A panic inside the supervisor itself is
// fatal for the process: something is very wrong, and limping on would only
// produce garbage.
func (s *Supervisor) Supervise(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("supervisor panicked, aborting", "panic", r)
			os.Exit(1)
		}
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = defaultRestartBackoff
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = maxRestartBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastRestart time.Time

	for {
		err := s.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			// The loop only returns nil when its context ends, which
			// was handled above; treat anything else as a defect.
			err = errors.New("detection loop terminated without an error")
		}

		if !lastRestart.IsZero() && s.now().Sub(lastRestart) >= calmPeriod {
			bo.Reset()
		}

		delay := bo.NextBackOff()
		slog.Error("detection loop died, restarting", "error", err, "backoff", delay)

		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
		lastRestart = s.now()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
