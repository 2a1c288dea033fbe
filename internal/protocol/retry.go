package protocol

import (
	"context"
	"time"

	"github.com/lvollmer/bazaarnode/pkg/enums"
	apperrors "github.com/lvollmer/bazaarnode/pkg/errors"
)

// RetryPending replays queued out-of-order messages whose parent may have
// arrived since. Rows older than maxAge are dropped first; rows that fail
// for good (corrupt, malformed, illegal) are dropped rather than retried
// forever. Returns how many messages were applied this pass.
func (p *Processor) RetryPending(ctx context.Context, batchSize int, maxAge time.Duration) (int, error) {
	cutoff := p.clock().Add(-maxAge)
	if dropped, err := p.pending.DropOlderThan(ctx, cutoff); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDependency, err, "dropping aged pending messages")
	} else if dropped > 0 {
		p.logg.Warn(p.logg.WithField(ctx, "dropped", dropped), "dropped pending messages past max age")
	}

	rows, err := p.pending.FetchQueued(ctx, batchSize)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDependency, err, "fetching pending messages")
	}

	applied := 0
	for _, row := range rows {
		msg, err := p.codec.Decode(row.Raw)
		if err != nil {
			if markErr := p.pending.MarkDropped(ctx, row.ID, err.Error()); markErr != nil {
				return applied, markErr
			}
			continue
		}

		result, err := p.Process(ctx, msg)
		switch {
		case err == nil && result.Outcome == enums.ProcessOutcomePending:
			if markErr := p.pending.MarkAttempt(ctx, row.ID, "reference still unresolved", p.clock()); markErr != nil {
				return applied, markErr
			}
		case err == nil:
			applied++
			if markErr := p.pending.MarkApplied(ctx, row.ID); markErr != nil {
				return applied, markErr
			}
		case retryablePendingError(err):
			if markErr := p.pending.MarkAttempt(ctx, row.ID, err.Error(), p.clock()); markErr != nil {
				return applied, markErr
			}
		default:
			if markErr := p.pending.MarkDropped(ctx, row.ID, err.Error()); markErr != nil {
				return applied, markErr
			}
		}
	}

	if depth, err := p.pending.CountQueued(ctx); err == nil {
		p.metrics.SetPendingDepth(int(depth))
	}
	return applied, nil
}

// retryablePendingError keeps transient failures queued; everything else is
// a permanent verdict on the message itself.
func retryablePendingError(err error) bool {
	return apperrors.Is(err, apperrors.CodeDependency)
}
