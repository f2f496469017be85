package usecase

import (
	"context"
	"strings"

	"github.com/jessenaser/duobreak/internal/duo/entity"
	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

type CodeHistoryInput struct {
	VaultPath string `validate:"required"`
	Password  string `validate:"required"`
	Name      string `validate:"required"`

	// Count limits the result to the most recent entries; 0 means all.
	Count int `validate:"min=0,max=10000"`
}

// CodeHistory returns previously generated codes in generation order, oldest
// first.
func (s *Usecase) CodeHistory(ctx context.Context, in CodeHistoryInput) ([]entity.CodeLogEntry, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	st, err := s.openVault(ctx, in.VaultPath, in.Password)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	return st.RecentCodes(in.Name, in.Count)
}
