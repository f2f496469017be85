package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jessenaser/duobreak/internal/pkg/goerror"
	"github.com/jessenaser/duobreak/internal/pkg/qr"
)

type KeyAddInput struct {
	VaultPath string `validate:"required"`
	Password  string `validate:"required"`
	Name      string `validate:"required,min=1,max=100"`

	// Payload is the enrollment QR text, "<activation code>-<base64 host>".
	Payload string `validate:"required"`
}

type KeyAddOutput struct {
	Name         string
	Host         string
	CustomerName string
}

type activationTarget struct {
	Code string `validate:"required"`
	Host string `validate:"required,duohost"`
}

// KeyAdd activates a new credential and stores it under a unique name.
//
// The vault is created on first use. The duplicate check runs before the
// network handshake because activation codes are single-use; burning one on
// a name collision would strand the credential.
func (s *Usecase) KeyAdd(ctx context.Context, in KeyAddInput) (*KeyAddOutput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	act, err := qr.ParseActivation(in.Payload)
	if err != nil {
		slog.WarnContext(ctx, "activation payload rejected", "error", err)
		return nil, goerror.NewBusiness("activation payload is not in <code>-<base64 host> form", goerror.CodeInvalidInput)
	}
	if err := s.validator.Validate(activationTarget{Code: act.Code, Host: act.Host}); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	st, err := s.opener.OpenOrCreate(in.VaultPath, in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open or create vault", "path", in.VaultPath, "error", err)
		return nil, err
	}
	defer st.Close()

	if _, err := st.GetKey(in.Name); err == nil {
		return nil, goerror.NewBusiness(fmt.Sprintf("key %q already exists", in.Name), goerror.CodeDuplicateKey)
	} else if !errors.Is(err, goerror.ErrNotFound) {
		return nil, err
	}

	rec, err := s.client.Activate(ctx, act.Code, act.Host)
	if err != nil {
		slog.ErrorContext(ctx, "activation handshake failed", "name", in.Name, "host", act.Host, "error", err)
		return nil, err
	}

	if err := st.AddKey(in.Name, rec); err != nil {
		slog.ErrorContext(ctx, "failed to store activated key", "name", in.Name, "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "key activated and stored", "name", in.Name, "host", act.Host)
	return &KeyAddOutput{
		Name:         in.Name,
		Host:         act.Host,
		CustomerName: rec.Response.CustomerName,
	}, nil
}
