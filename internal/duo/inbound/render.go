package inbound

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jessenaser/duobreak/internal/duo/entity"
	"github.com/jessenaser/duobreak/internal/duo/usecase"
	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

func (c *CLI) renderJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerror.NewServer(fmt.Errorf("encode result: %w", err))
	}
	return nil
}

func (c *CLI) renderInit(g *globals, out *usecase.VaultInitOutput) error {
	if g.jsonOut {
		return c.renderJSON(map[string]string{"status": "created", "path": out.Path})
	}
	fmt.Fprintf(c.out, "Created vault %s\n", out.Path)
	return nil
}

func (c *CLI) renderAdd(g *globals, out *usecase.KeyAddOutput) error {
	if g.jsonOut {
		return c.renderJSON(map[string]string{
			"status":        "added",
			"name":          out.Name,
			"host":          out.Host,
			"customer_name": out.CustomerName,
		})
	}
	if out.CustomerName != "" {
		fmt.Fprintf(c.out, "Activated %s (%s) against %s\n", out.Name, out.CustomerName, out.Host)
	} else {
		fmt.Fprintf(c.out, "Activated %s against %s\n", out.Name, out.Host)
	}
	return nil
}

func (c *CLI) renderDeleted(g *globals, name string) error {
	if g.jsonOut {
		return c.renderJSON(map[string]string{"status": "deleted", "name": name})
	}
	fmt.Fprintf(c.out, "Deleted %s\n", name)
	return nil
}

func (c *CLI) renderList(g *globals, keys []entity.KeySummary) error {
	if g.jsonOut {
		if keys == nil {
			keys = []entity.KeySummary{}
		}
		return c.renderJSON(keys)
	}
	if len(keys) == 0 {
		fmt.Fprintln(c.out, "No keys stored")
		return nil
	}
	for _, k := range keys {
		if k.CustomerName != "" {
			fmt.Fprintf(c.out, "%s\t%s\t%s\n", k.Name, k.CustomerName, k.Host)
		} else {
			fmt.Fprintf(c.out, "%s\t%s\n", k.Name, k.Host)
		}
	}
	return nil
}

func (c *CLI) renderCode(g *globals, out *usecase.CodeGenerateOutput) error {
	if g.jsonOut {
		return c.renderJSON(map[string]any{
			"name":    out.Name,
			"code":    out.Code,
			"counter": out.Counter,
			"at":      out.At.Format(time.RFC3339),
		})
	}
	fmt.Fprintln(c.out, out.Code)
	return nil
}

func (c *CLI) renderCodeView(g *globals, out *usecase.CodeViewOutput) error {
	if g.jsonOut {
		return c.renderJSON(map[string]any{
			"name":    out.Name,
			"code":    out.Code,
			"counter": out.Counter,
		})
	}
	fmt.Fprintln(c.out, out.Code)
	return nil
}

func (c *CLI) renderHistory(g *globals, name string, entries []entity.CodeLogEntry) error {
	if g.jsonOut {
		if entries == nil {
			entries = []entity.CodeLogEntry{}
		}
		return c.renderJSON(map[string]any{"name": name, "codes": entries})
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No codes generated yet")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "%s\t%s\n", e.At.Format(time.RFC3339), e.Code)
	}
	return nil
}

func (c *CLI) renderPush(g *globals, outcome *entity.PushOutcome) error {
	if g.jsonOut {
		body := map[string]any{
			"state":    outcome.State.String(),
			"attempts": outcome.Attempts,
		}
		if outcome.Transaction != nil {
			body["transaction_id"] = outcome.Transaction.ID
		}
		return c.renderJSON(body)
	}

	switch outcome.State {
	case entity.PushStateApproved:
		fmt.Fprintf(c.out, "Approved push %s after %d attempt(s)\n", outcome.Transaction.ID, outcome.Attempts)
	case entity.PushStateDenied:
		fmt.Fprintf(c.out, "Denied push %s after %d attempt(s)\n", outcome.Transaction.ID, outcome.Attempts)
	case entity.PushStateExhausted:
		fmt.Fprintf(c.out, "No push challenge arrived after %d attempt(s)\n", outcome.Attempts)
	default:
		fmt.Fprintf(c.out, "Push sequence ended in state %s after %d attempt(s)\n", outcome.State, outcome.Attempts)
	}
	return nil
}

func (c *CLI) renderPasswordChanged(g *globals) error {
	if g.jsonOut {
		return c.renderJSON(map[string]string{"status": "password_changed"})
	}
	fmt.Fprintln(c.out, "Vault password changed")
	return nil
}
