package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/hupe1980/predator"
	"github.com/hupe1980/predator/config"
	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/sales"
	"github.com/hupe1980/predator/internal/util"
)

const demoLead = "New Lead: Acme Corp. Budget: $60,000. Urgency: ASAP. They need a CRM."

// RunCmd works a single lead, asking on stdin whenever the agent pauses.
type RunCmd struct {
	Lead   string `arg:"" optional:"" default:"${demo_lead}" help:"Lead description"`
	Task   string `default:"demo" help:"Task id; reuse it with a sqlite store to resume"`
	Market string `default:"http://localhost:8001" help:"Market oracle base URL, used when the config lists no remotes (empty disables)"`
	Answer string `enum:"ask,yes,no" default:"ask" help:"How to answer confirmations (ask, yes, no)"`

	in  io.Reader
	out io.Writer
}

// Run executes the command.
func (c *RunCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return err
	}
	if len(cfg.Remotes) == 0 && c.Market != "" {
		cfg.Remotes = []config.RemoteAgent{{
			Name:        sales.MarketOracleName,
			BaseURL:     c.Market,
			Description: "Fetches competitor pricing from external vendor.",
		}}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return c.work(ctx, cfg, g.User)
}

func (c *RunCmd) work(ctx context.Context, cfg config.Config, user string, optFns ...func(o *predator.Options)) error {
	out := c.writer()
	outbox := sales.OutboxFunc(func(_ context.Context, recipient, strategy string) error {
		fmt.Fprintf(out, "  ✉ Email sent to %s (%s)\n", recipient, strategy)
		return nil
	})

	app, err := predator.New(append([]func(o *predator.Options){
		predator.WithConfig(cfg),
		predator.WithTools(sales.NewScoreLeadTool(), sales.NewDraftOutreachTool(outbox)),
	}, optFns...)...)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Fprintln(out, "Predator is watching...")
	fmt.Fprintf(out, "\nUSER: %s\n\n", c.Lead)

	input := bufio.NewReader(c.reader())
	msg := core.NewTextMessage(user, c.Lead)
	for {
		pending, err := c.drive(ctx, app, msg)
		if err != nil {
			return err
		}
		if pending == nil {
			return nil
		}

		approved, err := c.decide(input, pending)
		if err != nil {
			return err
		}
		msg = core.NewDecisionMessage(user, pending.InvocationID, approved)
	}
}

// drive streams one run and returns the confirmation it paused on, if any.
func (c *RunCmd) drive(ctx context.Context, app *predator.App, msg core.Message) (*core.PendingConfirmation, error) {
	events, errs, err := app.Run(ctx, c.Task, msg)
	if err != nil {
		return nil, err
	}

	out := c.writer()
	var pending *core.PendingConfirmation
	for ev := range events {
		switch ev.Kind {
		case core.KindActionRequest:
			if ev.Action.Kind == core.ActionRemoteAgent {
				fmt.Fprintf(out, "  → Agent: %s\n", ev.Action.Name)
			} else {
				fmt.Fprintf(out, "  → Tool: %s %s\n", ev.Action.Name, util.Stringify(ev.Action.Args))
			}
		case core.KindActionResult:
			if ev.Result.Failed() {
				fmt.Fprintf(out, "  ✗ %s failed [%s]: %s\n", ev.Result.Name, ev.Result.Code, ev.Result.Error)
			} else {
				fmt.Fprintf(out, "  ✓ %s: %s\n", ev.Result.Name, util.Stringify(ev.Result.Payload))
			}
		case core.KindPendingConfirmation:
			pending = ev.Confirmation
		case core.KindFinalAnswer:
			fmt.Fprintf(out, "\nPREDATOR: %s\n", ev.Text)
		}
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return pending, nil
}

func (c *RunCmd) decide(in *bufio.Reader, pc *core.PendingConfirmation) (bool, error) {
	out := c.writer()
	fmt.Fprintln(out, "\nPREDATOR PAUSED: APPROVAL REQUIRED")
	fmt.Fprintln(out, pc.Hint)

	switch c.Answer {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}

	fmt.Fprint(out, ">> Type 'yes' to approve, 'no' to reject: ")
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("read decision: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes"), nil
}

func (c *RunCmd) writer() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

func (c *RunCmd) reader() io.Reader {
	if c.in != nil {
		return c.in
	}
	return os.Stdin
}
