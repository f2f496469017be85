package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

type KeyDeleteInput struct {
	VaultPath string `validate:"required"`
	Password  string `validate:"required"`
	Name      string `validate:"required"`
}

// KeyDelete removes a stored credential. The server-side registration is not
// revoked; only the local copy goes away.
func (s *Usecase) KeyDelete(ctx context.Context, in KeyDeleteInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	st, err := s.openVault(ctx, in.VaultPath, in.Password)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteKey(in.Name); err != nil {
		slog.WarnContext(ctx, "failed to delete key", "name", in.Name, "error", err)
		return err
	}

	slog.InfoContext(ctx, "key deleted", "name", in.Name)
	return nil
}
