/*
retry.go - Optimistic-conflict retry wrapper

PURPOSE:
  Re-executes a whole lifecycle operation when a version-checked save hits
  a concurrent modification. The operation body always re-reads fresh
  state, so a retry is a clean second attempt, never a merge.

CONTRACT:
  - Only ErrVersionConflict triggers a retry; every other error surfaces
    immediately.
  - At most cfg.MaxAttempts attempts, cfg.RetryDelay apart. The delay
    keeps two conflicting writers from re-colliding in lockstep.
  - Exhaustion surfaces a ConflictError that still unwraps to
    ErrVersionConflict for callers that classify errors.
*/
package lending

import (
	"context"
	"time"

	"github.com/warp/loan-engine/ledger"
)

func (s *Service) withRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !ledger.IsRetryable(err) {
			return err
		}

		s.metrics.VersionConflict()
		if attempt >= s.cfg.MaxAttempts {
			s.metrics.RetriesExhausted()
			s.log.WithField("operation", operation).
				WithField("attempts", attempt).
				Error("optimistic retries exhausted")
			return &ledger.ConflictError{Operation: operation, Attempts: attempt}
		}

		s.log.WithField("operation", operation).
			WithField("attempt", attempt).
			Warn("version conflict, retrying")

		if s.cfg.RetryDelay > 0 {
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
