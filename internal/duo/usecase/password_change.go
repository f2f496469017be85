package usecase

import (
	"context"
	"log/slog"

	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

type PasswordChangeInput struct {
	VaultPath   string `validate:"required"`
	Password    string `validate:"required"`
	NewPassword string `validate:"required"`
}

// PasswordChange re-encrypts the vault under the new password. The old
// password must decrypt the vault first; there is no recovery path around it.
func (s *Usecase) PasswordChange(ctx context.Context, in PasswordChangeInput) error {
	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	st, err := s.openVault(ctx, in.VaultPath, in.Password)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ChangePassword(in.NewPassword); err != nil {
		slog.ErrorContext(ctx, "failed to change vault password", "path", in.VaultPath, "error", err)
		return err
	}

	slog.InfoContext(ctx, "vault password changed", "path", in.VaultPath)
	return nil
}
