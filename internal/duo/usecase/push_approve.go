package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jessenaser/duobreak/internal/duo/entity"
	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

type PushApproveInput struct {
	VaultPath string `validate:"required"`
	Password  string `validate:"required"`
	Name      string `validate:"required"`

	// Deny answers the challenge with a deliberate rejection instead of an
	// approval.
	Deny bool

	// MaxAttempts and PollInterval override the configured polling window
	// when non-zero.
	MaxAttempts  int           `validate:"min=0,max=1000"`
	PollInterval time.Duration `validate:"min=0"`
}

// PushApprove waits for a pending push challenge on the credential and
// answers it.
//
// Exhausting the polling window without a challenge is a normal outcome; the
// caller reads it off the returned state. A failed reply comes back with both
// the outcome and the error.
func (s *Usecase) PushApprove(ctx context.Context, in PushApproveInput) (*entity.PushOutcome, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	st, err := s.openVault(ctx, in.VaultPath, in.Password)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	rec, err := st.GetKey(in.Name)
	if err != nil {
		return nil, err
	}

	answer := entity.AnswerApprove
	if in.Deny {
		answer = entity.AnswerDeny
	}

	maxAttempts := in.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = s.cfg.GetInt("push.max_attempts")
	}
	interval := in.PollInterval
	if interval == 0 {
		interval = s.cfg.GetSecond("push.poll_interval_seconds")
	}

	slog.InfoContext(ctx, "polling for push challenge",
		"name", in.Name, "answer", answer, "max_attempts", maxAttempts)

	outcome, err := s.client.ApprovePush(ctx, rec, answer, maxAttempts, interval)
	if err != nil {
		slog.ErrorContext(ctx, "push sequence failed", "name", in.Name, "error", err)
		return outcome, err
	}

	slog.InfoContext(ctx, "push sequence finished",
		"name", in.Name, "state", outcome.State.String(), "attempts", outcome.Attempts)
	return outcome, nil
}
