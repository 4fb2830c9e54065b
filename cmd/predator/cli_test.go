package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/predator"
	"github.com/hupe1980/predator/a2a"
	"github.com/hupe1980/predator/config"
	"github.com/hupe1980/predator/internal/sales"
	"github.com/hupe1980/predator/logging"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, ctx
}

func TestRunCmd_Defaults(t *testing.T) {
	cli, ctx := parse(t, "run")
	assert.Equal(t, "run", ctx.Command())
	assert.Equal(t, demoLead, cli.Run.Lead)
	assert.Equal(t, "demo", cli.Run.Task)
	assert.Equal(t, "http://localhost:8001", cli.Run.Market)
	assert.Equal(t, "ask", cli.Run.Answer)
	assert.Equal(t, "admin", cli.User)
}

func TestRunCmd_Flags(t *testing.T) {
	cli, _ := parse(t, "--user", "bob", "run", "New Lead: Foo.", "--task", "t2", "--answer", "no", "--market", "")
	assert.Equal(t, "New Lead: Foo.", cli.Run.Lead)
	assert.Equal(t, "t2", cli.Run.Task)
	assert.Equal(t, "no", cli.Run.Answer)
	assert.Empty(t, cli.Run.Market)
	assert.Equal(t, "bob", cli.User)
}

func TestRunCmd_InvalidAnswer(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	require.NoError(t, err)
	_, err = parser.Parse([]string{"run", "--answer", "maybe"})
	assert.Error(t, err)
}

func TestServeCmd_Flags(t *testing.T) {
	cli, ctx := parse(t, "serve", "-a", "0.0.0.0:9000")
	assert.Equal(t, "serve", ctx.Command())
	assert.Equal(t, "0.0.0.0:9000", cli.Serve.Address)
	assert.Equal(t, "market_oracle", cli.Serve.Name)

	d := cli.Serve.descriptor()
	assert.Equal(t, "market_oracle", d.Name)
	require.Len(t, d.Skills, 1)
}

func TestRunCmd_WorksLeadAgainstPeer(t *testing.T) {
	peer, err := predator.New(
		predator.WithOracle(sales.MarketOracle{}),
		predator.WithTools(sales.NewPricingTool()),
		predator.WithLogger(logging.NoOpLogger{}),
	)
	require.NoError(t, err)
	var srv *a2a.Server
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.Handler().ServeHTTP(w, r)
	}))
	defer ts.Close()
	desc := (&ServeCmd{Name: sales.MarketOracleName}).descriptor()
	desc.URL = ts.URL + a2a.InvokePath
	srv = peer.Server(desc)

	cfg := config.Default()
	cfg.Remotes = []config.RemoteAgent{{Name: sales.MarketOracleName, BaseURL: ts.URL}}

	var out bytes.Buffer
	cmd := &RunCmd{Lead: demoLead, Task: "demo", Answer: "ask", in: strings.NewReader("yes\n"), out: &out}
	require.NoError(t, cmd.work(context.Background(), cfg, "admin", predator.WithLogger(logging.NoOpLogger{})))

	text := out.String()
	assert.Contains(t, text, "→ Tool: score_lead")
	assert.Contains(t, text, "→ Agent: market_oracle")
	assert.Contains(t, text, "PREDATOR PAUSED")
	assert.Contains(t, text, "Email sent to Acme Corp")
	assert.Contains(t, text, "PREDATOR: Lead Acme Corp scored 100 (CRITICAL).")
	assert.Contains(t, text, sales.StatusSent)
}

func TestRunCmd_AutoReject(t *testing.T) {
	var out bytes.Buffer
	cmd := &RunCmd{Lead: demoLead, Task: "demo", Answer: "no", out: &out}
	require.NoError(t, cmd.work(context.Background(), config.Default(), "admin", predator.WithLogger(logging.NoOpLogger{})))

	assert.Contains(t, out.String(), sales.StatusRejected)
	assert.NotContains(t, out.String(), "Email sent")
}
