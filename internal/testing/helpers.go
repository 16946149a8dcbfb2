package testing

import (
	"context"
	"testing"
	"time"

	"github.com/imamik/azhpc/internal/util/retry"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// RecordingSleeper records requested delays without sleeping. It still
// honours cancellation.
type RecordingSleeper struct {
	Delays []time.Duration
}

// Sleep implements retry.Sleeper.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.Delays = append(s.Delays, d)
	return ctx.Err()
}

// Executor returns a retry executor that records delays instead of sleeping.
func (s *RecordingSleeper) Executor() *retry.Executor {
	return &retry.Executor{Sleep: s.Sleep}
}

// Clock returns a fixed clock func.
func Clock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}
