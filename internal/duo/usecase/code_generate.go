package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

type CodeGenerateInput struct {
	VaultPath string `validate:"required"`
	Password  string `validate:"required"`
	Name      string `validate:"required"`
}

type CodeGenerateOutput struct {
	Name    string
	Code    string
	Counter uint64
	At      time.Time
}

// CodeGenerate advances the credential's counter and returns the code for the
// new value. Counter advance, code derivation, and history append land in one
// vault save, so a crash cannot leave the counter pointing at an unlogged code.
func (s *Usecase) CodeGenerate(ctx context.Context, in CodeGenerateInput) (*CodeGenerateOutput, error) {
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

	at := s.clock.Now()
	counter, code, err := st.Generate(in.Name, at, func(counter uint64) (string, error) {
		return s.hotp.CodeAt(rec.Response.HOTPSecret, counter)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate code", "name", in.Name, "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "code generated", "name", in.Name, "counter", counter)
	return &CodeGenerateOutput{Name: in.Name, Code: code, Counter: counter, At: at}, nil
}
