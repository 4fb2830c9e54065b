package predator

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/predator/a2a"
	"github.com/hupe1980/predator/config"
	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/sales"
	"github.com/hupe1980/predator/logging"
	"github.com/hupe1980/predator/model"
)

const lead = "New Lead: Acme Corp. Budget: $60,000. Urgency: ASAP. They need a CRM."

func TestNew_PlaybookWithoutRemote(t *testing.T) {
	outbox := &sales.MemoryOutbox{}
	app, err := New(
		WithTools(sales.NewScoreLeadTool(), sales.NewDraftOutreachTool(outbox)),
		WithLogger(logging.NoOpLogger{}),
	)
	require.NoError(t, err)
	defer app.Close()

	events, err := app.RunSync(context.Background(), "demo", core.NewTextMessage("admin", lead))
	require.NoError(t, err)
	require.Equal(t, core.KindPendingConfirmation, events[len(events)-1].Kind)

	pending, err := app.Pending(context.Background(), "demo")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	events, err = app.RunSync(context.Background(), "demo", core.NewDecisionMessage("admin", pending[0].InvocationID, true))
	require.NoError(t, err)
	assert.Contains(t, events[len(events)-1].Text, sales.StatusSent)
	assert.Len(t, outbox.Sent(), 1)
}

func TestNew_DefaultLoggerIsTaskAware(t *testing.T) {
	app, err := New()
	require.NoError(t, err)
	defer app.Close()
	assert.IsType(t, &logging.TaskLogger{}, app.logger)
}

func TestNew_ComponentLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text", Output: &buf})

	app, err := New(
		WithTools(sales.NewScoreLeadTool(), sales.NewDraftOutreachTool(&sales.MemoryOutbox{})),
		WithLogger(logger),
	)
	require.NoError(t, err)
	defer app.Close()

	_, err = app.RunSync(context.Background(), "demo", core.NewTextMessage("admin", lead))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "component=runner")
	assert.Contains(t, out, "runner.dispatch.completed")
	assert.Contains(t, out, "component=compactor")
	assert.Contains(t, out, "task_id=demo outcome=skipped")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "redis"
	_, err := New(WithConfig(cfg))
	assert.Error(t, err)
}

func TestNew_SQLiteSurvivesRestart(t *testing.T) {
	cfg := config.Default()
	cfg.Store = config.StoreConfig{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "predator.db")}

	open := func(outbox *sales.MemoryOutbox) *App {
		app, err := New(WithConfig(cfg), WithLogger(logging.NoOpLogger{}),
			WithTools(sales.NewScoreLeadTool(), sales.NewDraftOutreachTool(outbox)))
		require.NoError(t, err)
		return app
	}

	first := open(&sales.MemoryOutbox{})
	events, err := first.RunSync(context.Background(), "demo", core.NewTextMessage("admin", lead))
	require.NoError(t, err)
	id := events[len(events)-1].Confirmation.InvocationID
	require.NoError(t, first.Close())

	outbox := &sales.MemoryOutbox{}
	second := open(outbox)
	defer second.Close()
	events, err = second.RunSync(context.Background(), "demo", core.NewDecisionMessage("admin", id, false))
	require.NoError(t, err)
	assert.Contains(t, events[len(events)-1].Text, sales.StatusRejected)
	assert.Empty(t, outbox.Sent())
}

func TestNew_ModelProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Oracle.Provider = config.ProviderOpenAI

	m := model.NewMockModel("mock", "mock").AddResponse(model.Response{Text: "Hi from the model."})
	app, err := New(WithConfig(cfg), WithModel(m), WithLogger(logging.NoOpLogger{}))
	require.NoError(t, err)
	defer app.Close()

	events, err := app.RunSync(context.Background(), "t", core.NewTextMessage("admin", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "Hi from the model.", events[len(events)-1].Text)
}

func TestServer_PublishesRunnerAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	peer, err := New(
		WithOracle(sales.MarketOracle{}),
		WithTools(sales.NewPricingTool()),
		WithPrometheus(reg),
		WithLogger(logging.NoOpLogger{}),
	)
	require.NoError(t, err)

	var srv *a2a.Server
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.Handler().ServeHTTP(w, r)
	}))
	defer ts.Close()
	srv = peer.Server(core.AgentDescriptor{Name: sales.MarketOracleName, Description: "pricing", URL: ts.URL + a2a.InvokePath})

	cfg := config.Default()
	cfg.Remotes = []config.RemoteAgent{{Name: sales.MarketOracleName, BaseURL: ts.URL}}
	caller, err := New(WithConfig(cfg), WithLogger(logging.NoOpLogger{}), WithOracle(oracleFunc(func(s core.State) core.Action {
		for _, ev := range s.Events {
			if ev.Kind == core.KindActionResult {
				return core.FinalAnswer(ev.Result.Payload.(string))
			}
		}
		return core.CallAgent(sales.MarketOracleName, "CRM pricing")
	})))
	require.NoError(t, err)

	events, err := caller.RunSync(context.Background(), "t", core.NewTextMessage("admin", "pricing?"))
	require.NoError(t, err)
	assert.Equal(t, sales.CompetitorPricing("crm"), events[len(events)-1].Text)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "predator_runs_total")
}

type oracleFunc func(core.State) core.Action

func (f oracleFunc) Next(_ context.Context, s core.State) (core.Action, error) { return f(s), nil }

func TestServer_DefaultURL(t *testing.T) {
	cfg := config.Default()
	cfg.Server.PublicURL = "https://oracle.example.com/"
	app, err := New(WithConfig(cfg), WithLogger(logging.NoOpLogger{}))
	require.NoError(t, err)

	srv := app.Server(core.AgentDescriptor{Name: "x"})
	assert.Equal(t, "https://oracle.example.com"+a2a.InvokePath, srv.Descriptor().URL)
}
