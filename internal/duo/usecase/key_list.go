package usecase

import (
	"context"

	"github.com/jessenaser/duobreak/internal/duo/entity"
	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

type KeyListInput struct {
	VaultPath string `validate:"required"`
	Password  string `validate:"required"`
}

// KeyList returns every stored credential summary sorted by name. Secrets
// never leave the store through this path.
func (s *Usecase) KeyList(ctx context.Context, in KeyListInput) ([]entity.KeySummary, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	st, err := s.openVault(ctx, in.VaultPath, in.Password)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	return st.ListKeys(), nil
}
