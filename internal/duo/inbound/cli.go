package inbound

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/jessenaser/duobreak/internal/duo/entity"
	"github.com/jessenaser/duobreak/internal/duo/usecase"
	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

// DefaultVaultPath is the vault file used when no path is given.
const DefaultVaultPath = "keychains.duo"

const passwordEnv = "DUOBREAK_PASSWORD"

type duoUsecase interface {
	VaultInit(ctx context.Context, in usecase.VaultInitInput) (*usecase.VaultInitOutput, error)
	KeyAdd(ctx context.Context, in usecase.KeyAddInput) (*usecase.KeyAddOutput, error)
	KeyDelete(ctx context.Context, in usecase.KeyDeleteInput) error
	KeyList(ctx context.Context, in usecase.KeyListInput) ([]entity.KeySummary, error)
	CodeGenerate(ctx context.Context, in usecase.CodeGenerateInput) (*usecase.CodeGenerateOutput, error)
	CodeView(ctx context.Context, in usecase.CodeViewInput) (*usecase.CodeViewOutput, error)
	CodeHistory(ctx context.Context, in usecase.CodeHistoryInput) ([]entity.CodeLogEntry, error)
	PushApprove(ctx context.Context, in usecase.PushApproveInput) (*entity.PushOutcome, error)
	PasswordChange(ctx context.Context, in usecase.PasswordChangeInput) error
}

// CLI dispatches subcommands to the usecase layer and renders results as text
// or JSON.
type CLI struct {
	uc    duoUsecase
	out   io.Writer
	errW  io.Writer
	stdin io.Reader

	// stdinR buffers stdin once so two consecutive prompts do not lose
	// piped input to a discarded buffer.
	stdinR *bufio.Reader
}

// NewCLI constructs a CLI writing results to out and prompts to errW.
func NewCLI(uc duoUsecase, out, errW io.Writer, stdin io.Reader) *CLI {
	return &CLI{uc: uc, out: out, errW: errW, stdin: stdin, stdinR: bufio.NewReader(stdin)}
}

type globals struct {
	vaultPath    string
	password     string
	passwordFile string
	jsonOut      bool
}

func (c *CLI) bindGlobals(fs *flag.FlagSet, g *globals) {
	fs.StringVar(&g.vaultPath, "db-path", DefaultVaultPath, "path to the encrypted vault file")
	fs.StringVar(&g.password, "password", "", "vault password (prefer -password-file or "+passwordEnv+")")
	fs.StringVar(&g.passwordFile, "password-file", "", "file containing the vault password")
	fs.BoolVar(&g.jsonOut, "json", false, "render the result as JSON")
}

// Run parses args and executes one subcommand. The returned error carries a
// typed code the caller maps to an exit status.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.usage()
		return goerror.NewBusiness("no command given", goerror.CodeInvalidInput)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return c.cmdInit(ctx, rest)
	case "add":
		return c.cmdAdd(ctx, rest)
	case "delete":
		return c.cmdDelete(ctx, rest)
	case "list":
		return c.cmdList(ctx, rest)
	case "hotp":
		return c.cmdHOTP(ctx, rest)
	case "hotp-history":
		return c.cmdHOTPHistory(ctx, rest)
	case "push":
		return c.cmdPush(ctx, rest)
	case "change-password":
		return c.cmdChangePassword(ctx, rest)
	case "help", "-h", "--help":
		c.usage()
		return nil
	default:
		c.usage()
		return goerror.NewBusiness(fmt.Sprintf("unknown command %q", cmd), goerror.CodeInvalidInput)
	}
}

func (c *CLI) usage() {
	fmt.Fprint(c.errW, `Usage: duobreak <command> [flags]

Commands:
  init             create a new empty vault
  add              activate a credential from a QR payload and store it
  delete           remove a stored credential
  list             list stored credentials
  hotp             generate the next one-time code (-view to peek at the last)
  hotp-history     show previously generated codes
  push             wait for a push challenge and answer it
  change-password  re-encrypt the vault under a new password

Common flags: -db-path, -password, -password-file, -json
The vault password can also come from `+passwordEnv+` or an interactive prompt.
`)
}

func (c *CLI) cmdInit(ctx context.Context, args []string) error {
	var g globals
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(c.errW)
	c.bindGlobals(fs, &g)
	if err := fs.Parse(args); err != nil {
		return goerror.NewBusiness(err.Error(), goerror.CodeInvalidInput)
	}

	password, err := c.resolvePassword(&g, true)
	if err != nil {
		return err
	}

	out, err := c.uc.VaultInit(ctx, usecase.VaultInitInput{VaultPath: g.vaultPath, Password: password})
	if err != nil {
		return err
	}
	return c.renderInit(&g, out)
}

func (c *CLI) cmdAdd(ctx context.Context, args []string) error {
	var (
		g       globals
		name    string
		payload string
	)
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(c.errW)
	c.bindGlobals(fs, &g)
	fs.StringVar(&name, "name", "", "name for the new credential")
	fs.StringVar(&payload, "payload", "", "activation QR payload, <code>-<base64 host>")
	if err := fs.Parse(args); err != nil {
		return goerror.NewBusiness(err.Error(), goerror.CodeInvalidInput)
	}
	if payload == "" {
		payload = strings.TrimSpace(fs.Arg(0))
	}

	password, err := c.resolvePassword(&g, false)
	if err != nil {
		return err
	}

	out, err := c.uc.KeyAdd(ctx, usecase.KeyAddInput{
		VaultPath: g.vaultPath,
		Password:  password,
		Name:      name,
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	return c.renderAdd(&g, out)
}

func (c *CLI) cmdDelete(ctx context.Context, args []string) error {
	var (
		g    globals
		name string
	)
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(c.errW)
	c.bindGlobals(fs, &g)
	fs.StringVar(&name, "name", "", "credential to delete")
	if err := fs.Parse(args); err != nil {
		return goerror.NewBusiness(err.Error(), goerror.CodeInvalidInput)
	}

	password, err := c.resolvePassword(&g, false)
	if err != nil {
		return err
	}

	if err := c.uc.KeyDelete(ctx, usecase.KeyDeleteInput{
		VaultPath: g.vaultPath,
		Password:  password,
		Name:      name,
	}); err != nil {
		return err
	}
	return c.renderDeleted(&g, name)
}

func (c *CLI) cmdList(ctx context.Context, args []string) error {
	var g globals
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(c.errW)
	c.bindGlobals(fs, &g)
	if err := fs.Parse(args); err != nil {
		return goerror.NewBusiness(err.Error(), goerror.CodeInvalidInput)
	}

	password, err := c.resolvePassword(&g, false)
	if err != nil {
		return err
	}

	keys, err := c.uc.KeyList(ctx, usecase.KeyListInput{VaultPath: g.vaultPath, Password: password})
	if err != nil {
		return err
	}
	return c.renderList(&g, keys)
}

func (c *CLI) cmdHOTP(ctx context.Context, args []string) error {
	var (
		g    globals
		name string
		view bool
	)
	fs := flag.NewFlagSet("hotp", flag.ContinueOnError)
	fs.SetOutput(c.errW)
	c.bindGlobals(fs, &g)
	fs.StringVar(&name, "name", "", "credential to generate a code for")
	fs.BoolVar(&view, "view", false, "show the last generated code without advancing the counter")
	if err := fs.Parse(args); err != nil {
		return goerror.NewBusiness(err.Error(), goerror.CodeInvalidInput)
	}

	password, err := c.resolvePassword(&g, false)
	if err != nil {
		return err
	}

	if view {
		out, err := c.uc.CodeView(ctx, usecase.CodeViewInput{
			VaultPath: g.vaultPath,
			Password:  password,
			Name:      name,
		})
		if err != nil {
			return err
		}
		return c.renderCodeView(&g, out)
	}

	out, err := c.uc.CodeGenerate(ctx, usecase.CodeGenerateInput{
		VaultPath: g.vaultPath,
		Password:  password,
		Name:      name,
	})
	if err != nil {
		return err
	}
	return c.renderCode(&g, out)
}

func (c *CLI) cmdHOTPHistory(ctx context.Context, args []string) error {
	var (
		g     globals
		name  string
		count int
	)
	fs := flag.NewFlagSet("hotp-history", flag.ContinueOnError)
	fs.SetOutput(c.errW)
	c.bindGlobals(fs, &g)
	fs.StringVar(&name, "name", "", "credential to show history for")
	fs.IntVar(&count, "count", 10, "limit to the most recent N entries (0 = all)")
	if err := fs.Parse(args); err != nil {
		return goerror.NewBusiness(err.Error(), goerror.CodeInvalidInput)
	}

	password, err := c.resolvePassword(&g, false)
	if err != nil {
		return err
	}

	entries, err := c.uc.CodeHistory(ctx, usecase.CodeHistoryInput{
		VaultPath: g.vaultPath,
		Password:  password,
		Name:      name,
		Count:     count,
	})
	if err != nil {
		return err
	}
	return c.renderHistory(&g, name, entries)
}

func (c *CLI) cmdPush(ctx context.Context, args []string) error {
	var (
		g           globals
		name        string
		deny        bool
		maxAttempts int
		intervalSec int
	)
	fs := flag.NewFlagSet("push", flag.ContinueOnError)
	fs.SetOutput(c.errW)
	c.bindGlobals(fs, &g)
	fs.StringVar(&name, "name", "", "credential to answer a push for")
	fs.BoolVar(&deny, "deny", false, "deny the challenge instead of approving it")
	fs.IntVar(&maxAttempts, "max-attempts", 0, "override the configured polling attempt limit")
	fs.IntVar(&intervalSec, "interval", 0, "override the configured polling interval (seconds)")
	if err := fs.Parse(args); err != nil {
		return goerror.NewBusiness(err.Error(), goerror.CodeInvalidInput)
	}

	password, err := c.resolvePassword(&g, false)
	if err != nil {
		return err
	}

	outcome, err := c.uc.PushApprove(ctx, usecase.PushApproveInput{
		VaultPath:    g.vaultPath,
		Password:     password,
		Name:         name,
		Deny:         deny,
		MaxAttempts:  maxAttempts,
		PollInterval: time.Duration(intervalSec) * time.Second,
	})
	if err != nil {
		return err
	}
	return c.renderPush(&g, outcome)
}

func (c *CLI) cmdChangePassword(ctx context.Context, args []string) error {
	var (
		g           globals
		newPassword string
	)
	fs := flag.NewFlagSet("change-password", flag.ContinueOnError)
	fs.SetOutput(c.errW)
	c.bindGlobals(fs, &g)
	fs.StringVar(&newPassword, "new-password", "", "new vault password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return goerror.NewBusiness(err.Error(), goerror.CodeInvalidInput)
	}

	password, err := c.resolvePassword(&g, false)
	if err != nil {
		return err
	}
	if newPassword == "" {
		newPassword, err = c.promptPassword("New vault password: ", true)
		if err != nil {
			return err
		}
	}

	if err := c.uc.PasswordChange(ctx, usecase.PasswordChangeInput{
		VaultPath:   g.vaultPath,
		Password:    password,
		NewPassword: newPassword,
	}); err != nil {
		return err
	}
	return c.renderPasswordChanged(&g)
}

// resolvePassword picks the vault password from, in order: -password-file,
// -password, the environment, then an interactive prompt. confirm doubles the
// prompt for vault creation so a typo cannot lock a fresh vault.
func (c *CLI) resolvePassword(g *globals, confirm bool) (string, error) {
	if g.passwordFile != "" {
		b, err := os.ReadFile(g.passwordFile)
		if err != nil {
			return "", goerror.NewBusiness(
				fmt.Sprintf("cannot read password file %q: %v", g.passwordFile, err),
				goerror.CodeInvalidInput)
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}
	if g.password != "" {
		return g.password, nil
	}
	if env := os.Getenv(passwordEnv); env != "" {
		return env, nil
	}
	return c.promptPassword("Vault password: ", confirm)
}

func (c *CLI) promptPassword(prompt string, confirm bool) (string, error) {
	first, err := c.readSecret(prompt)
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", goerror.NewBusiness("password must not be empty", goerror.CodeInvalidInput)
	}
	if !confirm {
		return first, nil
	}

	second, err := c.readSecret("Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", goerror.NewBusiness("passwords do not match", goerror.CodeInvalidInput)
	}
	return first, nil
}

func (c *CLI) readSecret(prompt string) (string, error) {
	fmt.Fprint(c.errW, prompt)

	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.errW)
		if err != nil {
			return "", goerror.NewServer(fmt.Errorf("read password: %w", err))
		}
		return string(b), nil
	}

	// Piped input: read one line.
	line, err := c.stdinR.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", goerror.NewServer(fmt.Errorf("read password: %w", err))
	}
	return strings.TrimRight(line, "\r\n"), nil
}
