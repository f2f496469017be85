package usecase

import (
	"context"
	"log/slog"

	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

type VaultInitInput struct {
	VaultPath string `validate:"required"`
	Password  string `validate:"required"`
}

type VaultInitOutput struct {
	Path string
}

// VaultInit creates a new empty vault file. It refuses to touch an existing
// file; losing a populated vault to a typo is not recoverable.
func (s *Usecase) VaultInit(ctx context.Context, in VaultInitInput) (*VaultInitOutput, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	st, err := s.opener.Create(in.VaultPath, in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create vault", "path", in.VaultPath, "error", err)
		return nil, err
	}
	defer st.Close()

	slog.InfoContext(ctx, "vault created", "path", st.Path())
	return &VaultInitOutput{Path: st.Path()}, nil
}
