package duoapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jessenaser/duobreak/internal/duo/entity"
	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

// Polling defaults. Push challenges expire server-side after about a minute,
// so the window covers a challenge sent shortly after the loop starts.
const (
	DefaultMaxAttempts  = 10
	DefaultPollInterval = 10 * time.Second
)

var errNoPending = errors.New("no pending transactions")

// ApprovePush polls for pending transactions and answers the oldest one.
//
// Each attempt is one fetch: a transient fetch failure or an empty result
// consumes the attempt and the loop sleeps before trying again. Once a
// transaction is observed it is answered exactly once; a failed reply stops
// the sequence immediately. Exhausting every attempt without seeing a
// transaction is a normal outcome, not an error.
func (c *Client) ApprovePush(ctx context.Context, rec *entity.KeyRecord, answer entity.Answer, maxAttempts int, interval time.Duration) (*entity.PushOutcome, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var (
		outcome  *entity.PushOutcome
		attempts int
		replyErr error
	)

	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewConstant(interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		txs, err := c.FetchTransactions(ctx, rec)
		if err != nil {
			slog.WarnContext(ctx, "transaction fetch failed",
				"attempt", attempts, "max_attempts", maxAttempts, "error", err)
			return retry.RetryableError(err)
		}
		if len(txs) == 0 {
			slog.DebugContext(ctx, "no pending transactions",
				"attempt", attempts, "max_attempts", maxAttempts)
			return retry.RetryableError(errNoPending)
		}

		tx := txs[0]
		if err := c.Reply(ctx, tx.ID, answer, rec); err != nil {
			replyErr = err
			outcome = &entity.PushOutcome{State: entity.PushStateError, Transaction: &tx, Attempts: attempts}
			return err
		}

		state := entity.PushStateApproved
		if answer == entity.AnswerDeny {
			state = entity.PushStateDenied
		}
		outcome = &entity.PushOutcome{State: state, Transaction: &tx, Attempts: attempts}
		return nil
	})

	if outcome != nil {
		return outcome, replyErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &entity.PushOutcome{State: entity.PushStateError, Attempts: attempts},
			goerror.Wrap(ctxErr, "polling cancelled", goerror.CodeTimeout)
	}
	slog.InfoContext(ctx, "polling window exhausted", "attempts", attempts, "error", err)
	return &entity.PushOutcome{State: entity.PushStateExhausted, Attempts: attempts}, nil
}
