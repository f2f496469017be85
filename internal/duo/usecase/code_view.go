package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

type CodeViewInput struct {
	VaultPath string `validate:"required"`
	Password  string `validate:"required"`
	Name      string `validate:"required"`
}

type CodeViewOutput struct {
	Name    string
	Code    string
	Counter uint64
}

// CodeView recomputes the code for the credential's current counter without
// advancing it. The server has already seen this counter value, so viewing is
// free; it cannot desynchronize anything.
func (s *Usecase) CodeView(ctx context.Context, in CodeViewInput) (*CodeViewOutput, error) {
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
	if rec.Counter == 0 {
		return nil, goerror.NewBusiness(
			fmt.Sprintf("key %q has no generated code yet; generate one first", in.Name),
			goerror.CodeInvalidInput)
	}

	code, err := s.hotp.CodeAt(rec.Response.HOTPSecret, rec.Counter)
	if err != nil {
		slog.ErrorContext(ctx, "failed to recompute code", "name", in.Name, "counter", rec.Counter, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &CodeViewOutput{Name: in.Name, Code: code, Counter: rec.Counter}, nil
}
