// Package app wires configuration, logging, libraries, and the duo module
// into a runnable command-line application.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jessenaser/duobreak/internal/duo/inbound"
	"github.com/jessenaser/duobreak/internal/duo/outbound/duoapi"
	"github.com/jessenaser/duobreak/internal/duo/outbound/vaultfile"
	"github.com/jessenaser/duobreak/internal/pkg/clock"
	"github.com/jessenaser/duobreak/internal/pkg/config"
	"github.com/jessenaser/duobreak/internal/pkg/goerror"
	"github.com/jessenaser/duobreak/internal/pkg/hotp"
	"github.com/jessenaser/duobreak/internal/pkg/uid"
	"github.com/jessenaser/duobreak/internal/pkg/validator"
)

// App wires dependencies and runs one command invocation.
type App struct {
	// configuration
	config config.Config

	// libraries
	validator validator.Validator
	clock     clock.Clocker
	uuid      uid.StringID
	hotp      hotp.OTP

	// resources
	opener *vaultfile.Opener
	client *duoapi.Client

	// inbound
	cli *inbound.CLI
}

// New initializes the application with default wiring and returns an App
// instance.
func New() *App {
	app := &App{}

	app.initConfig()
	app.initLogger()
	app.initLibraries()
	app.initClient()
	app.initModules()

	return app
}

// Run executes one command and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	err := a.cli.Run(ctx, args)
	if err == nil {
		return 0
	}

	msg := err.Error()
	var gerr *goerror.Error
	if errors.As(err, &gerr) {
		msg = gerr.Error()
		// Validation failures carry the field details in the cause.
		if cause := gerr.Unwrap(); gerr.Type() == goerror.TypeValidation && cause != nil {
			msg += ": " + cause.Error()
		}
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	return goerror.ExitCodeFor(err)
}
