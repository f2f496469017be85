package app

import (
	"log/slog"
	"os"

	libOTP "github.com/pquerna/otp"

	"github.com/jessenaser/duobreak/internal/duo/inbound"
	"github.com/jessenaser/duobreak/internal/duo/outbound/duoapi"
	"github.com/jessenaser/duobreak/internal/duo/outbound/vaultfile"
	"github.com/jessenaser/duobreak/internal/duo/usecase"
	"github.com/jessenaser/duobreak/internal/pkg/clock"
	"github.com/jessenaser/duobreak/internal/pkg/config"
	"github.com/jessenaser/duobreak/internal/pkg/hotp"
	"github.com/jessenaser/duobreak/internal/pkg/uid"
	"github.com/jessenaser/duobreak/internal/pkg/validator"
)

func configDefaults() map[string]any {
	return map[string]any{
		"app.log_level":              "warn",
		"duo.timeout_seconds":        15,
		"duo.insecure_skip_verify":   false,
		"push.max_attempts":          10,
		"push.poll_interval_seconds": 10,
	}
}

func (a *App) initConfig() {
	path := os.Getenv("DUOBREAK_CONFIG")
	if path == "" {
		a.config = config.NewViperDefaults(configDefaults())
		return
	}

	cfg, err := config.NewViper(path, configDefaults())
	if err != nil {
		slog.Error("failed to init config", "path", path, "error", err)
		os.Exit(1)
	}
	a.config = cfg
}

func (a *App) initLogger() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.config.GetString("app.log_level"))); err != nil {
		level = slog.LevelWarn
	}

	// Results go to stdout; logs stay on stderr so output remains pipeable.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.hotp = hotp.New(libOTP.DigitsSix)

	v, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = v
}

func (a *App) initClient() {
	a.client = duoapi.New(duoapi.Config{
		Timeout:            a.config.GetSecond("duo.timeout_seconds"),
		InsecureSkipVerify: a.config.GetBool("duo.insecure_skip_verify"),
	}, a.clock)
}

func (a *App) initModules() {
	a.opener = vaultfile.NewOpener(a.uuid)

	uc := usecase.New(usecase.Dependency{
		Opener:    storeOpener{opener: a.opener},
		Client:    a.client,
		HOTP:      a.hotp,
		Validator: a.validator,
		Config:    a.config,
		Clock:     a.clock,
	})

	a.cli = inbound.NewCLI(uc, os.Stdout, os.Stderr, os.Stdin)
}
