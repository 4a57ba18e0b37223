package document

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/S-Corkum/crdt-engine/pkg/change"
	"github.com/S-Corkum/crdt-engine/pkg/observability"
)

// Syncer drives the retry and circuit-breaking policy around handing a
// produced ChangePack to a transport's send function. The transport itself
// (framing, auth, reconnection) is out of scope (spec §1); what belongs
// here is the boundary policy for "the last send failed, should we try
// again right now" so a host doesn't have to hand-roll it per integration,
// mirroring how the teacher wraps its own outbound client calls with
// backoff and a breaker.
type Syncer struct {
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
}

// SendFunc hands pack to the transport and reports whether it was accepted.
type SendFunc func(ctx context.Context, pack *change.Pack) error

// NewSyncer creates a Syncer named for docKey, tripping its breaker after
// a run of consecutive send failures so a host doesn't hot-loop a poisoned
// pack against an unreachable or rejecting server.
func NewSyncer(docKey string, logger observability.Logger) *Syncer {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	settings := gobreaker.Settings{
		Name:        "sync:" + docKey,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Syncer{breaker: gobreaker.NewCircuitBreaker(settings), logger: logger}
}

// Send retries send up to 3 times with exponential backoff, through the
// breaker, logging each failed attempt. It returns the final error (which
// may be gobreaker.ErrOpenState if the breaker has tripped).
func (s *Syncer) Send(ctx context.Context, pack *change.Pack, send SendFunc) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	_, err := s.breaker.Execute(func() (any, error) {
		attempt := 0
		err := backoff.Retry(func() error {
			attempt++
			if err := send(ctx, pack); err != nil {
				s.logger.Warn("change pack send failed", map[string]any{
					"documentKey": pack.DocumentKey,
					"attempt":     attempt,
					"error":       err.Error(),
				})
				return err
			}
			return nil
		}, policy)
		return nil, err
	})
	return err
}
