package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jessenaser/duobreak/internal/duo/entity"
	"github.com/jessenaser/duobreak/internal/pkg/clock"
	"github.com/jessenaser/duobreak/internal/pkg/config"
	"github.com/jessenaser/duobreak/internal/pkg/goerror"
	"github.com/jessenaser/duobreak/internal/pkg/hotp"
	"github.com/jessenaser/duobreak/internal/pkg/validator"
)

// VaultStore is one open, decrypted vault. Every mutation persists before the
// call returns; Close wipes the key material.
type VaultStore interface {
	Path() string
	Close()
	AddKey(name string, rec *entity.KeyRecord) error
	DeleteKey(name string) error
	GetKey(name string) (*entity.KeyRecord, error)
	ListKeys() []entity.KeySummary
	IncrementCounter(name string) (uint64, error)
	PeekCounter(name string) (uint64, error)
	LogCode(name, code string, at time.Time) error
	RecentCodes(name string, n int) ([]entity.CodeLogEntry, error)
	Generate(name string, at time.Time, code func(counter uint64) (string, error)) (uint64, string, error)
	ChangePassword(newPassword string) error
}

type vaultOpener interface {
	Open(path, password string) (VaultStore, error)
	Create(path, password string) (VaultStore, error)
	OpenOrCreate(path, password string) (VaultStore, error)
}

type authClient interface {
	Activate(ctx context.Context, code, host string) (*entity.KeyRecord, error)
	ApprovePush(ctx context.Context, rec *entity.KeyRecord, answer entity.Answer, maxAttempts int, interval time.Duration) (*entity.PushOutcome, error)
}

type Usecase struct {
	opener    vaultOpener
	client    authClient
	hotp      hotp.OTP
	validator validator.Validator
	cfg       config.Config
	clock     clock.Clocker
}

type Dependency struct {
	Opener    vaultOpener
	Client    authClient
	HOTP      hotp.OTP
	Validator validator.Validator
	Config    config.Config
	Clock     clock.Clocker
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		opener:    dep.Opener,
		client:    dep.Client,
		hotp:      dep.HOTP,
		validator: dep.Validator,
		cfg:       dep.Config,
		clock:     dep.Clock,
	}
}

func (s *Usecase) openVault(ctx context.Context, path, password string) (VaultStore, error) {
	st, err := s.opener.Open(path, password)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "vault does not exist", "path", path)
		return nil, err
	}
	if errors.Is(err, goerror.ErrAuthentication) {
		slog.WarnContext(ctx, "vault password rejected", "path", path)
		return nil, err
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to open vault", "path", path, "error", err)
		return nil, err
	}
	return st, nil
}
